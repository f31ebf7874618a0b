// Package registry loads the enabled scholarship sources for a run.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// ErrConfigUnavailable means the configuration store could not be read. It is
// fatal to the run.
var ErrConfigUnavailable = errors.New("configuration store unavailable")

// ErrSourceNotFound means no source row has the requested name.
var ErrSourceNotFound = errors.New("source not found")

// ConfigInvalidError describes one source whose payload cannot be used.
type ConfigInvalidError struct {
	Source string
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("source %q: invalid config: %s", e.Source, e.Reason)
}

// Store reads raw source rows.
type Store interface {
	ScanEnabled(ctx context.Context) ([]model.SourceConfig, error)
	// Get returns the row named name, enabled or not, or ErrSourceNotFound.
	Get(ctx context.Context, name string) (model.SourceConfig, error)
}

// Registry validates and decodes source rows. It never caches: every call
// reflects the store at that moment.
type Registry struct {
	store Store
	log   logger.Logger
}

// New returns a Registry over store.
func New(store Store, log logger.Logger) *Registry {
	return &Registry{store: store, log: log.With(logger.Component("registry"))}
}

// LoadEnabledSources returns every enabled, valid source. Invalid sources are
// logged and skipped; a store failure wraps ErrConfigUnavailable.
func (r *Registry) LoadEnabledSources(ctx context.Context) ([]model.SourceConfig, error) {
	rows, err := r.store.ScanEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}

	seen := make(map[string]bool, len(rows))
	sources := make([]model.SourceConfig, 0, len(rows))
	for _, src := range rows {
		if !src.Enabled {
			continue
		}
		if seen[src.Name] {
			r.log.Warn("Duplicate source name, keeping first", logger.String("source", src.Name))
			continue
		}
		if err := Decode(&src); err != nil {
			r.log.Warn("Skipping source", logger.String("source", src.Name), logger.Error(err))
			continue
		}
		seen[src.Name] = true
		sources = append(sources, src)
	}

	r.log.Info("Loaded enabled sources", logger.Int("count", len(sources)))
	return sources, nil
}

// GetSource looks up one source by name and decodes it. Disabled sources are
// returned as stored; an undecodable payload yields a *ConfigInvalidError.
func (r *Registry) GetSource(ctx context.Context, name string) (*model.SourceConfig, error) {
	src, err := r.store.Get(ctx, name)
	switch {
	case errors.Is(err, ErrSourceNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	if err := Decode(&src); err != nil {
		return nil, err
	}
	return &src, nil
}

// Decode parses src.Payload into the typed config for src.Kind, applies
// defaults and validates required fields.
func Decode(src *model.SourceConfig) error {
	if src.Name == "" {
		return &ConfigInvalidError{Reason: "missing name"}
	}
	payload := src.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	invalid := func(format string, args ...any) error {
		return &ConfigInvalidError{Source: src.Name, Reason: fmt.Sprintf(format, args...)}
	}

	switch src.Kind {
	case model.KindAPI:
		var c model.APIConfig
		if err := json.Unmarshal(payload, &c); err != nil {
			return invalid("decode api payload: %v", err)
		}
		if c.Endpoint == "" {
			return invalid("api endpoint is required")
		}
		if c.FieldMap["name"] == "" {
			return invalid(`api fieldMap must map "name"`)
		}
		c = c.WithDefaults()
		src.API = &c

	case model.KindCrawl:
		var c model.CrawlConfig
		if err := json.Unmarshal(payload, &c); err != nil {
			return invalid("decode crawl payload: %v", err)
		}
		if c.URL == "" {
			return invalid("crawl url is required")
		}
		if c.Selectors.Row == "" || c.Selectors.Name == "" {
			return invalid("crawl selectors.row and selectors.name are required")
		}
		c = c.WithDefaults()
		src.Crawl = &c

	case model.KindDiscovery:
		var c model.DiscoveryConfig
		if err := json.Unmarshal(payload, &c); err != nil {
			return invalid("decode discovery payload: %v", err)
		}
		if len(c.SeedURLs) == 0 {
			return invalid("discovery seedUrls are required")
		}
		if len(c.Keywords) == 0 {
			return invalid("discovery keywords are required")
		}
		if c.RelevanceThreshold > 1 {
			return invalid("relevanceThreshold must be within 0..1, got %v", c.RelevanceThreshold)
		}
		c = c.WithDefaults()
		src.Discovery = &c

	case model.KindSearch:
		var c model.SearchConfig
		if err := json.Unmarshal(payload, &c); err != nil {
			return invalid("decode search payload: %v", err)
		}
		if len(c.Terms) == 0 {
			return invalid("search terms are required")
		}
		c = c.WithDefaults()
		src.Search = &c

	default:
		return invalid("unknown kind %q", src.Kind)
	}
	return nil
}
