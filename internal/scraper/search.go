package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/ratelimit"
)

// SearchHit is one web search result.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
}

// SearchClient queries a web search engine.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// WebSearchClient calls a Brave-compatible web search API
// (GET ?q=&count=, X-Subscription-Token header, results in web.results).
type WebSearchClient struct {
	endpoint string
	apiKey   string
	pages    *PageFetcher
}

// NewWebSearchClient returns nil when endpoint is empty, which leaves the
// search adapter in model-only mode.
func NewWebSearchClient(endpoint, apiKey string, pages *PageFetcher) SearchClient {
	if endpoint == "" {
		return nil
	}
	return &WebSearchClient{endpoint: endpoint, apiKey: apiKey, pages: pages}
}

type webSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements SearchClient.
func (c *WebSearchClient) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.apiKey != "" {
		header.Set("X-Subscription-Token", c.apiKey)
	}
	pg, err := c.pages.Get(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}

	var body webSearchResponse
	if err := json.Unmarshal(pg.Body, &body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]SearchHit, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		if r.URL == "" {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// SearchAdapter runs each configured term through web search and the model
// extractor.
type SearchAdapter struct {
	extractor *Extractor
	search    SearchClient
	pages     *PageFetcher
	log       logger.Logger
}

// NewSearchAdapter constructs the search adapter. A nil search client sends
// each term straight to the model.
func NewSearchAdapter(extractor *Extractor, search SearchClient, pages *PageFetcher, log logger.Logger) *SearchAdapter {
	return &SearchAdapter{extractor: extractor, search: search, pages: pages, log: log.With(logger.Component("search"))}
}

// Fetch implements Adapter. Terms are paced by PacingMS. The source fails
// only when every unit of work failed.
func (s *SearchAdapter) Fetch(ctx context.Context, src model.SourceConfig) (*Result, error) {
	if src.Search == nil {
		return nil, fmt.Errorf("source %s: missing search config", src.Name)
	}
	cfg := src.Search.WithDefaults()
	pacer := ratelimit.Every(time.Duration(cfg.PacingMS) * time.Millisecond)

	res := &Result{}
	attempted, failed := 0, 0
	for _, term := range cfg.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if err := pacer.WaitForNextSlot(ctx); err != nil {
			return nil, err
		}

		if s.search == nil {
			attempted++
			recs, err := s.extractor.ExtractFromQuery(ctx, term)
			if err != nil {
				failed++
				res.addError("term %q: %v", term, err)
				continue
			}
			res.Records = append(res.Records, recs...)
			continue
		}

		hits, err := s.search.Search(ctx, term, cfg.MaxResultsPerTerm)
		attempted++
		if err != nil {
			failed++
			res.addError("search %q: %v", term, err)
			continue
		}
		for _, hit := range hits {
			attempted++
			recs, err := s.extractor.Extract(ctx, s.hitContent(ctx, hit), hit.URL)
			if err != nil {
				failed++
				res.addError("extract %s: %v", hit.URL, err)
				continue
			}
			res.Records = append(res.Records, recs...)
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("all %d search operations failed: %s", failed, res.Errors[len(res.Errors)-1])
	}
	s.log.Info("Search done",
		logger.String("source", src.Name),
		logger.Int("terms", len(cfg.Terms)),
		logger.Int("records", len(res.Records)),
		logger.Bool("model_only", s.search == nil),
	)
	return res, nil
}

// hitContent returns the hit page's text, or its title and snippet when the
// page cannot be fetched.
func (s *SearchAdapter) hitContent(ctx context.Context, hit SearchHit) string {
	fallback := strings.TrimSpace(hit.Title + "\n" + hit.Snippet)
	pg, err := s.pages.Get(ctx, hit.URL, nil)
	if err != nil {
		s.log.Debug("Hit fetch failed, using snippet", logger.String("url", hit.URL), logger.Error(err))
		return fallback
	}
	title, text, err := PageText(pg.Body)
	if err != nil || text == "" {
		return fallback
	}
	return strings.TrimSpace(title + "\n" + text)
}
