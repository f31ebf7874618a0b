// Package scraper implements the per-kind source adapters that turn a
// SourceConfig into candidate scholarship records.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/ai"
	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/retry"
)

// Adapter fetches candidates for one source. Per-item failures go to
// Result.Errors; a returned error means the source itself was unreachable.
type Adapter interface {
	Fetch(ctx context.Context, src model.SourceConfig) (*Result, error)
}

// Result is the outcome of one Fetch.
type Result struct {
	Records []model.PartialRecord
	Errors  []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Deps are the shared collaborators adapters are built from.
type Deps struct {
	HTTPClient   *http.Client
	Generator    ai.Generator // nil makes discovery and search sources fail as not configured
	Search       SearchClient // nil makes the search adapter ask the model directly
	Archive      archive.Sink
	Secrets      SecretResolver
	Retry        retry.Policy
	MaxAttempts  int
	AIRatePerSec float64
	UserAgent    string
	Log          logger.Logger
	Now          func() time.Time
}

const (
	defaultUserAgent = "scholarsync/1.0 (+https://github.com/mochatech1725/scholarship-scraper2)"
	httpTimeout      = 30 * time.Second
)

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	if d.Archive == nil {
		d.Archive = archive.Nop{}
	}
	if d.Secrets == nil {
		d.Secrets = EnvSecrets{}
	}
	if d.MaxAttempts < 1 {
		d.MaxAttempts = 3
	}
	if d.UserAgent == "" {
		d.UserAgent = defaultUserAgent
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Set maps each source kind to its adapter. The mapping is fixed at build
// time.
type Set struct {
	adapters map[model.SourceKind]Adapter
}

// NewSet builds one adapter per kind. The AI-backed adapters each get their
// own model limiter.
func NewSet(d Deps) *Set {
	d = d.withDefaults()
	pages := NewPageFetcher(d.HTTPClient, d.Retry, d.MaxAttempts, d.UserAgent)
	return &Set{adapters: map[model.SourceKind]Adapter{
		model.KindAPI:       NewAPIFetcher(pages, d.Secrets, d.Archive, d.Log, d.Now),
		model.KindCrawl:     NewCrawlAdapter(pages, d.Archive, d.Log, d.Now),
		model.KindDiscovery: NewDiscoveryAdapter(NewExtractor(d.Generator, d.AIRatePerSec, d.Retry, d.MaxAttempts), d.Archive, d.UserAgent, d.Log, d.Now),
		model.KindSearch:    NewSearchAdapter(NewExtractor(d.Generator, d.AIRatePerSec, d.Retry, d.MaxAttempts), d.Search, pages, d.Log),
	}}
}

// NewSetFrom builds a Set from explicit adapters. Used by tests and callers
// that substitute a kind.
func NewSetFrom(adapters map[model.SourceKind]Adapter) *Set {
	return &Set{adapters: adapters}
}

// For returns the adapter registered for kind.
func (s *Set) For(kind model.SourceKind) (Adapter, error) {
	a, ok := s.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter for source kind %q", kind)
	}
	return a, nil
}
