package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// APIFetcher pulls scholarships from a paginated JSON API. Pages are requested
// until an empty or short page, or MaxPages, is reached.
type APIFetcher struct {
	pages   *PageFetcher
	secrets SecretResolver
	archive archive.Sink
	log     logger.Logger
	now     func() time.Time
}

// NewAPIFetcher constructs the API adapter.
func NewAPIFetcher(pages *PageFetcher, secrets SecretResolver, sink archive.Sink, log logger.Logger, now func() time.Time) *APIFetcher {
	return &APIFetcher{pages: pages, secrets: secrets, archive: sink, log: log.With(logger.Component("api-fetcher")), now: now}
}

// Fetch implements Adapter. A failure on the first page is fatal; a failure
// on a later page keeps the records already collected.
func (f *APIFetcher) Fetch(ctx context.Context, src model.SourceConfig) (*Result, error) {
	if src.API == nil {
		return nil, fmt.Errorf("source %s: missing api config", src.Name)
	}
	cfg := src.API.WithDefaults()

	var credential string
	if cfg.CredentialRef != "" {
		var err error
		if credential, err = f.secrets.Resolve(ctx, cfg.CredentialRef); err != nil {
			return nil, fmt.Errorf("resolve credential: %w", err)
		}
	}

	res := &Result{}
	maxPages := cfg.MaxPages
	if cfg.PageParam == "" {
		maxPages = 1
	}

	for i := 0; i < maxPages; i++ {
		page := cfg.StartPage + i
		items, err := f.fetchPage(ctx, src.Name, cfg, credential, page)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("page %d: %w", page, err)
			}
			res.addError("page %d: %v", page, err)
			break
		}
		if len(items) == 0 {
			break // No more results
		}

		for j, item := range items {
			rec, err := mapItem(item, cfg.FieldMap)
			if err != nil {
				res.addError("page %d item %d: %v", page, j, err)
				continue
			}
			res.Records = append(res.Records, rec)
		}
		if len(items) < cfg.PageSize {
			break // Last page
		}
	}

	f.log.Info("API fetch done", logger.String("source", src.Name), logger.Int("records", len(res.Records)))
	return res, nil
}

func (f *APIFetcher) fetchPage(ctx context.Context, source string, cfg model.APIConfig, credential string, page int) ([]any, error) {
	reqURL, header, err := buildAPIRequest(cfg, credential, page)
	if err != nil {
		return nil, err
	}

	pg, err := f.pages.Get(ctx, reqURL, header)
	if err != nil {
		return nil, err
	}
	f.archiveRaw(ctx, source, reqURL, pg)

	var body any
	if err := json.Unmarshal(pg.Body, &body); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	raw, ok := lookupPath(body, cfg.ResultsField)
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q is not an array", cfg.ResultsField)
	}
	return items, nil
}

func (f *APIFetcher) archiveRaw(ctx context.Context, source, reqURL string, pg *Page) {
	// The archived URL never carries the credential.
	safeURL := reqURL
	if u, err := url.Parse(reqURL); err == nil {
		u.RawQuery = ""
		safeURL = u.String()
	}
	err := f.archive.Put(ctx, archive.Object{
		Source: source, URL: safeURL, ContentType: "application/json", Body: pg.Body, FetchedAt: f.now(),
	})
	if err != nil {
		f.log.Warn("Archive failed", logger.String("source", source), logger.Error(err))
	}
}

func buildAPIRequest(cfg model.APIConfig, credential string, page int) (string, http.Header, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("parse endpoint: %w", err)
	}
	params := u.Query()
	for k, v := range cfg.QueryParams {
		params.Set(k, v)
	}
	if cfg.PageParam != "" {
		params.Set(cfg.PageParam, strconv.Itoa(page))
	}
	if cfg.PageSizeParam != "" {
		params.Set(cfg.PageSizeParam, strconv.Itoa(cfg.PageSize))
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if credential != "" {
		switch {
		case cfg.CredentialHeader != "":
			header.Set(cfg.CredentialHeader, credential)
		case cfg.CredentialParam != "":
			params.Set(cfg.CredentialParam, credential)
		default:
			header.Set("Authorization", "Bearer "+credential)
		}
	}
	u.RawQuery = params.Encode()
	return u.String(), header, nil
}

// ─── Field mapping ───────────────────────────────────────────────────────────

var errMissingName = errors.New("missing name")

var stringFields = map[string]func(*model.PartialRecord, string){
	"name":          func(r *model.PartialRecord, v string) { r.Name = v },
	"organization":  func(r *model.PartialRecord, v string) { r.Organization = v },
	"description":   func(r *model.PartialRecord, v string) { r.Description = v },
	"eligibility":   func(r *model.PartialRecord, v string) { r.Eligibility = v },
	"academicLevel": func(r *model.PartialRecord, v string) { r.AcademicLevel = v },
	"geographic":    func(r *model.PartialRecord, v string) { r.Geographic = v },
	"targetType":    func(r *model.PartialRecord, v string) { r.TargetType = v },
	"ethnicity":     func(r *model.PartialRecord, v string) { r.Ethnicity = v },
	"gender":        func(r *model.PartialRecord, v string) { r.Gender = v },
	"deadline":      func(r *model.PartialRecord, v string) { r.Deadline = v },
	"amount":        func(r *model.PartialRecord, v string) { r.Amount = v },
	"minAward":      func(r *model.PartialRecord, v string) { r.MinAward = v },
	"maxAward":      func(r *model.PartialRecord, v string) { r.MaxAward = v },
	"country":       func(r *model.PartialRecord, v string) { r.Country = v },
	"url":           func(r *model.PartialRecord, v string) { r.URL = v },
	"applyUrl":      func(r *model.PartialRecord, v string) { r.ApplyURL = v },
}

var boolFields = map[string]func(*model.PartialRecord, bool){
	"renewable":               func(r *model.PartialRecord, v bool) { r.Renewable = v },
	"essayRequired":           func(r *model.PartialRecord, v bool) { r.EssayRequired = v },
	"recommendationsRequired": func(r *model.PartialRecord, v bool) { r.RecommendationsRequired = v },
}

func mapItem(item any, fieldMap map[string]string) (model.PartialRecord, error) {
	var rec model.PartialRecord
	for field, path := range fieldMap {
		v, ok := lookupPath(item, path)
		if !ok || v == nil {
			continue
		}
		if set, ok := stringFields[field]; ok {
			set(&rec, stringify(v))
			continue
		}
		if set, ok := boolFields[field]; ok {
			set(&rec, truthy(v))
		}
	}
	if strings.TrimSpace(rec.Name) == "" {
		return rec, errMissingName
	}
	return rec, nil
}

// lookupPath walks a dotted path ("sponsor.name") through decoded JSON.
// An empty path returns v itself.
func lookupPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(strings.ToLower(t)))
		return b || strings.EqualFold(strings.TrimSpace(t), "yes")
	case float64:
		return t != 0
	default:
		return false
	}
}
