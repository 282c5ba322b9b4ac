package news

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sentiment-trader/internal/types"
)

// Source describes one headline listing page and how to read it.
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g. "/topic/{symbol}"
	Selectors  Selectors
	RateLimit  time.Duration
}

// Selectors are CSS selectors relative to each article container.
type Selectors struct {
	Article     string
	Title       string
	URL         string
	Summary     string
	PublishedAt string
}

// SearchURL builds the listing URL for symbol.
func (s Source) SearchURL(symbol string) string {
	return strings.TrimRight(s.BaseURL, "/") + strings.ReplaceAll(s.SearchPath, "{symbol}", url.PathEscape(strings.ToLower(symbol)))
}

// DefaultSources are the financial news listings scraped when the config names none.
func DefaultSources() []Source {
	return []Source{
		{
			Name:       "MoneyControl",
			BaseURL:    "https://www.moneycontrol.com",
			SearchPath: "/news/tags/{symbol}.html",
			Selectors: Selectors{
				Article:     "li.clearfix",
				Title:       "h2 a, h3 a",
				URL:         "h2 a, h3 a",
				Summary:     "p",
				PublishedAt: "span.ago",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "EconomicTimes",
			BaseURL:    "https://economictimes.indiatimes.com",
			SearchPath: "/topic/{symbol}",
			Selectors: Selectors{
				Article:     "div.story-box",
				Title:       "a",
				URL:         "a",
				Summary:     "p",
				PublishedAt: "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "BusinessStandard",
			BaseURL:    "https://www.business-standard.com",
			SearchPath: "/search?q={symbol}",
			Selectors: Selectors{
				Article:     "div.listing-txt",
				Title:       "a.Hdng",
				URL:         "a.Hdng",
				Summary:     "p",
				PublishedAt: "span.listing-date",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// SelectSources picks the named sources from DefaultSources, case-insensitively.
// No names means all of them.
func SelectSources(names []string) ([]Source, error) {
	all := DefaultSources()
	if len(names) == 0 {
		return all, nil
	}
	out := make([]Source, 0, len(names))
	for _, n := range names {
		found := false
		for _, s := range all {
			if strings.EqualFold(s.Name, n) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown news source %q", types.ErrConfiguration, n)
		}
	}
	return out, nil
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
}

func parsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extract reads one article container. It is shared by the live scraper and
// the offline parser so both produce identical headlines for the same markup.
func extract(sel *goquery.Selection, src Source, symbol string, base *url.URL, fallback time.Time) (types.Headline, bool) {
	title := strings.TrimSpace(sel.Find(src.Selectors.Title).First().Text())
	if title == "" {
		return types.Headline{}, false
	}

	link, _ := sel.Find(src.Selectors.URL).First().Attr("href")
	if link != "" && base != nil {
		if ref, err := url.Parse(link); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	published := fallback
	if src.Selectors.PublishedAt != "" {
		p := sel.Find(src.Selectors.PublishedAt).First()
		raw, ok := p.Attr("datetime")
		if !ok {
			raw = p.Text()
		}
		if t, ok := parsePublished(raw); ok {
			published = t
		}
	}

	var summary string
	if src.Selectors.Summary != "" {
		summary = strings.TrimSpace(sel.Find(src.Selectors.Summary).First().Text())
	}

	return types.Headline{
		Symbol:      symbol,
		Title:       title,
		URL:         link,
		Summary:     summary,
		Source:      src.Name,
		PublishedAt: published,
	}, true
}

// ParseHeadlines reads saved listing HTML with src's selectors. Articles
// without a parseable date keep the zero time.
func ParseHeadlines(r io.Reader, src Source, symbol string) ([]types.Headline, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse headlines html: %v", types.ErrData, err)
	}
	base, _ := url.Parse(src.BaseURL)
	if base != nil && base.Host == "" {
		base = nil
	}

	headlines := []types.Headline{}
	doc.Find(src.Selectors.Article).Each(func(_ int, s *goquery.Selection) {
		if h, ok := extract(s, src, symbol, base, time.Time{}); ok {
			headlines = append(headlines, h)
		}
	})
	return headlines, nil
}
