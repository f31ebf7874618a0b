package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/ratelimit"
)

// DiscoveryAdapter runs a bounded crawl from seed URLs, keeps pages that
// score as relevant and hands their text to the model extractor.
type DiscoveryAdapter struct {
	extractor *Extractor
	archive   archive.Sink
	userAgent string
	log       logger.Logger
	now       func() time.Time
}

// NewDiscoveryAdapter constructs the discovery adapter.
func NewDiscoveryAdapter(extractor *Extractor, sink archive.Sink, userAgent string, log logger.Logger, now func() time.Time) *DiscoveryAdapter {
	return &DiscoveryAdapter{
		extractor: extractor,
		archive:   sink,
		userAgent: userAgent,
		log:       log.With(logger.Component("discovery")),
		now:       now,
	}
}

type relevantPage struct {
	url   string
	text  string
	score float64
}

type crawlOutcome struct {
	fetched  int
	relevant []relevantPage
	errors   []string
}

// Fetch implements Adapter. The source fails only when no page could be
// fetched or every extraction failed.
func (d *DiscoveryAdapter) Fetch(ctx context.Context, src model.SourceConfig) (*Result, error) {
	if src.Discovery == nil {
		return nil, fmt.Errorf("source %s: missing discovery config", src.Name)
	}
	cfg := src.Discovery.WithDefaults()

	out := d.crawl(ctx, src.Name, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out.fetched == 0 {
		return nil, fmt.Errorf("no seed page reachable: %s", strings.Join(out.errors, "; "))
	}

	res := &Result{Errors: out.errors}
	failed := 0
	for _, p := range out.relevant {
		recs, err := d.extractor.Extract(ctx, p.text, p.url)
		if err != nil {
			failed++
			res.addError("extract %s: %v", p.url, err)
			continue
		}
		res.Records = append(res.Records, recs...)
	}
	if len(out.relevant) > 0 && failed == len(out.relevant) {
		return nil, fmt.Errorf("extraction failed for all %d relevant pages: %s", failed, res.Errors[len(res.Errors)-1])
	}

	d.log.Info("Discovery done",
		logger.String("source", src.Name),
		logger.Int("pages_fetched", out.fetched),
		logger.Int("pages_relevant", len(out.relevant)),
		logger.Int("records", len(res.Records)),
	)
	return res, nil
}

func (d *DiscoveryAdapter) crawl(ctx context.Context, source string, cfg model.DiscoveryConfig) *crawlOutcome {
	out := &crawlOutcome{}
	limiter := ratelimit.New(cfg.CrawlRatePerSec)
	requested := 0

	// Seeds are depth 1 in colly; MaxDepth counts link hops beyond them.
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(cfg.MaxDepth+1),
		colly.UserAgent(d.userAgent),
	)

	c.OnRequest(func(r *colly.Request) {
		if requested >= cfg.MaxPages {
			r.Abort()
			return
		}
		if err := limiter.WaitForNextSlot(ctx); err != nil {
			r.Abort()
			return
		}
		requested++
	})

	c.OnError(func(r *colly.Response, err error) {
		out.errors = append(out.errors, fmt.Sprintf("fetch %s: %v", r.Request.URL, err))
	})

	c.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL.String()
		out.fetched++
		if !strings.Contains(strings.ToLower(r.Headers.Get("Content-Type")), "html") {
			return
		}
		if err := d.archive.Put(ctx, archive.Object{
			Source: source, URL: pageURL, ContentType: "text/html", Body: r.Body, FetchedAt: d.now(),
		}); err != nil {
			d.log.Warn("Archive failed", logger.String("url", pageURL), logger.Error(err))
		}

		title, text, err := PageText(r.Body)
		if err != nil {
			out.errors = append(out.errors, fmt.Sprintf("parse %s: %v", pageURL, err))
			return
		}
		score := RelevanceScore(pageURL, title, text, cfg.Keywords)
		if score < cfg.RelevanceThreshold {
			d.log.Debug("Page below relevance threshold", logger.String("url", pageURL), logger.Float64("score", score))
			return
		}
		out.relevant = append(out.relevant, relevantPage{url: pageURL, text: text, score: score})
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !domainAllowed(link, cfg.AllowedDomains) {
			return
		}
		if !linkMatches(link, e.Text, cfg.Keywords) {
			return
		}
		// Depth, revisit and abort errors are expected here.
		_ = e.Request.Visit(link)
	})

	for _, seed := range cfg.SeedURLs {
		if ctx.Err() != nil {
			break
		}
		if err := c.Visit(seed); err != nil && !isExpectedVisitErr(err) {
			// OnError already recorded HTTP failures; this catches bad URLs.
			if !containsURL(out.errors, seed) {
				out.errors = append(out.errors, fmt.Sprintf("visit %s: %v", seed, err))
			}
		}
	}
	c.Wait()
	return out
}

// isExpectedVisitErr matches colly's already-visited and max-depth refusals,
// whose concrete types differ between colly releases.
func isExpectedVisitErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already visited") || strings.Contains(msg, "max depth")
}

func containsURL(errs []string, u string) bool {
	for _, e := range errs {
		if strings.Contains(e, u) {
			return true
		}
	}
	return false
}

// domainAllowed reports whether link's host is one of allowed or a subdomain
// of one. An empty allowlist permits every host.
func domainAllowed(link string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "www."))
		if a == "" {
			continue
		}
		if host == a || host == "www."+a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// linkMatches reports whether a link's URL or anchor text mentions a keyword.
// Without keywords every link matches.
func linkMatches(link, anchor string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	return containsKeyword(strings.ToLower(link), keywords) ||
		containsKeyword(strings.ToLower(anchor), keywords)
}
