package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
	"github.com/mochatech1725/scholarship-scraper2/internal/retry"
)

const maxBodyBytes = 10 << 20

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.URL, e.Code, e.Body)
}

// HTTPStatus lets the retry classifier see the status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

// Page is a fetched HTTP response body.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// PageFetcher performs GET requests through the retry executor.
type PageFetcher struct {
	client    *http.Client
	policy    retry.Policy
	attempts  int
	userAgent string
}

// NewPageFetcher returns a fetcher that tries each request up to attempts
// times.
func NewPageFetcher(client *http.Client, policy retry.Policy, attempts int, userAgent string) *PageFetcher {
	return &PageFetcher{client: client, policy: policy, attempts: attempts, userAgent: userAgent}
}

// Get fetches rawURL with optional extra headers.
func (f *PageFetcher) Get(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	return retry.Do(ctx, f.policy, f.attempts, func(ctx context.Context) (*Page, error) {
		return f.get(ctx, rawURL, header)
	})
}

func (f *PageFetcher) get(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Body: normalize.Truncate(string(body), 200)}
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

// PageText returns the title and visible text of an HTML document.
func PageText(body []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, svg, iframe").Remove()
	title = normalize.CleanText(doc.Find("title").First().Text(), normalize.TextOptions{})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return title, normalize.CleanText(root.Text(), normalize.TextOptions{}), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
