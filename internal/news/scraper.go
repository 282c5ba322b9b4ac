package news

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/gocolly/colly/v2"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/types"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper fetches headlines from listing pages with colly.
type Scraper struct {
	sources      []Source
	timeout      time.Duration
	userAgent    string
	maxHeadlines int
	now          func() time.Time
}

var _ interfaces.HeadlineSource = (*Scraper)(nil)

// NewScraper creates a scraper over sources. maxHeadlines <= 0 means no cap.
func NewScraper(sources []Source, timeout time.Duration, userAgent string, maxHeadlines int) *Scraper {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Scraper{
		sources:      sources,
		timeout:      timeout,
		userAgent:    userAgent,
		maxHeadlines: maxHeadlines,
		now:          time.Now,
	}
}

// Fetch scrapes every source and returns headlines newest first. A failing
// source is logged and skipped; Fetch only errors when every source failed.
func (s *Scraper) Fetch(ctx context.Context, symbol string) ([]types.Headline, error) {
	logger.Info(ctx, "Starting news scraping", "symbol", symbol, "sources", len(s.sources))

	perSource := 0
	if s.maxHeadlines > 0 && len(s.sources) > 0 {
		perSource = max(s.maxHeadlines/len(s.sources), 1)
	}

	all := []types.Headline{}
	var lastErr error
	failed := 0
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hs, err := s.scrapeSource(ctx, src, symbol, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", src.Name, "symbol", symbol)
			lastErr = err
			failed++
			continue
		}
		all = append(all, hs...)
	}
	if failed > 0 && failed == len(s.sources) {
		return nil, fmt.Errorf("all %d news sources failed: %w", failed, lastErr)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	if s.maxHeadlines > 0 && len(all) > s.maxHeadlines {
		all = all[:s.maxHeadlines]
	}

	logger.Info(ctx, "News scraping completed", "symbol", symbol, "headlines", len(all))
	return all, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source, symbol string, limit int) ([]types.Headline, error) {
	base, err := url.Parse(src.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("%w: source %s has invalid base url %q", types.ErrConfiguration, src.Name, src.BaseURL)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.MaxDepth(1),
		colly.UserAgent(s.userAgent),
		colly.StdlibContext(ctx),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}
	if src.RateLimit > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: src.RateLimit}); err != nil {
			return nil, err
		}
	}

	fetchedAt := s.now()
	headlines := []types.Headline{}
	c.OnHTML(src.Selectors.Article, func(e *colly.HTMLElement) {
		if limit > 0 && len(headlines) >= limit {
			return
		}
		if h, ok := extract(e.DOM, src, symbol, e.Request.URL, fetchedAt); ok {
			headlines = append(headlines, h)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.Debug(ctx, "Scraping error", "source", src.Name, "url", r.Request.URL.String(), "status", r.StatusCode, "error", err.Error())
	})

	searchURL := src.SearchURL(symbol)
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	return headlines, nil
}
