package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
)

// CrawlAdapter scrapes a paginated HTML listing with goquery selectors and
// optionally enriches each row from its detail page.
type CrawlAdapter struct {
	pages   *PageFetcher
	archive archive.Sink
	log     logger.Logger
	now     func() time.Time
}

// NewCrawlAdapter constructs the crawl adapter.
func NewCrawlAdapter(pages *PageFetcher, sink archive.Sink, log logger.Logger, now func() time.Time) *CrawlAdapter {
	return &CrawlAdapter{pages: pages, archive: sink, log: log.With(logger.Component("crawl")), now: now}
}

// PageOffset rotates through listing pages across runs. The offset is stable
// within an hour of the week.
func PageOffset(now time.Time, maxOffset int) int {
	if maxOffset <= 1 {
		return 0
	}
	return (int(now.Weekday())*24 + now.Hour()) % maxOffset
}

// Fetch implements Adapter. The first listing page failing is fatal; later
// listing pages and detail pages only record item errors.
func (c *CrawlAdapter) Fetch(ctx context.Context, src model.SourceConfig) (*Result, error) {
	if src.Crawl == nil {
		return nil, fmt.Errorf("source %s: missing crawl config", src.Name)
	}
	cfg := src.Crawl.WithDefaults()
	res := &Result{}
	seen := make(map[string]struct{})
	detailed := 0
	offset := PageOffset(c.now(), cfg.MaxPageOffset)

	for i := 0; i < cfg.PagesPerRun; i++ {
		page := cfg.StartPage + (offset+i)%cfg.MaxPageOffset
		pageURL, err := listingURL(cfg, page)
		if err != nil {
			return nil, err
		}

		recs, err := c.scrapeListing(ctx, src.Name, cfg, pageURL, seen)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("listing %s: %w", pageURL, err)
			}
			res.addError("listing %s: %v", pageURL, err)
			continue
		}

		for j := range recs {
			if cfg.DetailSelectors.Empty() || recs[j].URL == "" {
				continue
			}
			if detailed > 0 {
				if err := sleepCtx(ctx, time.Duration(cfg.DetailDelayMS)*time.Millisecond); err != nil {
					return nil, err
				}
			}
			detailed++
			if err := c.enrich(ctx, cfg.DetailSelectors, &recs[j]); err != nil {
				res.addError("detail %s: %v", recs[j].URL, err)
			}
		}
		res.Records = append(res.Records, recs...)
	}

	c.log.Info("Crawl done",
		logger.String("source", src.Name),
		logger.Int("page_offset", offset),
		logger.Int("records", len(res.Records)),
		logger.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func listingURL(cfg model.CrawlConfig, page int) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	if cfg.PageParam != "" {
		q := u.Query()
		q.Set(cfg.PageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *CrawlAdapter) scrapeListing(ctx context.Context, source string, cfg model.CrawlConfig, pageURL string, seen map[string]struct{}) ([]model.PartialRecord, error) {
	pg, err := c.pages.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if err := c.archive.Put(ctx, archive.Object{
		Source: source, URL: pageURL, ContentType: "text/html", Body: pg.Body, FetchedAt: c.now(),
	}); err != nil {
		c.log.Warn("Archive failed", logger.String("source", source), logger.Error(err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pg.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pg.URL)
	sel := cfg.Selectors

	var out []model.PartialRecord
	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		name := selText(row, sel.Name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		rec := model.PartialRecord{
			Name:         name,
			Organization: selText(row, sel.Organization),
			Amount:       selText(row, sel.Amount),
			Deadline:     selText(row, sel.Deadline),
			Description:  selText(row, sel.Description),
		}
		if href := selAttr(row, sel.Link, "href"); href != "" {
			rec.URL = resolveURL(base, href)
		}
		out = append(out, rec)
	})
	return out, nil
}

// enrich fills empty listing fields from the detail page. Listing values win.
func (c *CrawlAdapter) enrich(ctx context.Context, sel model.DetailSelectors, rec *model.PartialRecord) error {
	pg, err := c.pages.Get(ctx, rec.URL, nil)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pg.Body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	root := doc.Selection
	base, _ := url.Parse(pg.URL)

	fillEmpty(&rec.Description, selText(root, sel.Description))
	fillEmpty(&rec.Eligibility, selText(root, sel.Eligibility))
	fillEmpty(&rec.Amount, selText(root, sel.Amount))
	fillEmpty(&rec.Deadline, selText(root, sel.Deadline))
	if href := selAttr(root, sel.ApplyLink, "href"); href != "" {
		fillEmpty(&rec.ApplyURL, resolveURL(base, href))
	}
	return nil
}

func fillEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func selText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return normalize.CleanText(s.Find(selector).First().Text(), normalize.TextOptions{})
}

func selAttr(s *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	v, _ := s.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
