package news

import (
	"context"
	"sort"
	"sync"
	"time"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/sentiment"
	"sentiment-trader/internal/types"
)

// Service provides cached headline sentiment per symbol.
type Service struct {
	source interfaces.HeadlineSource
	cfg    ServiceConfig

	scoreMu sync.Mutex
	scorer  interfaces.SentimentAnalyzer

	cache *sentimentCache
}

// ServiceConfig configures the news sentiment service
type ServiceConfig struct {
	MaxHeadlines  int           // cap on scored headlines per symbol
	CacheDuration time.Duration // zero disables caching
	Enabled       bool
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxHeadlines:  20,
		CacheDuration: 15 * time.Minute,
		Enabled:       true,
	}
}

type sentimentCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	sentiment types.NewsSentiment
	storedAt  time.Time
}

func newSentimentCache(ttl time.Duration) *sentimentCache {
	return &sentimentCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *sentimentCache) get(symbol string) (types.NewsSentiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[symbol]
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return types.NewsSentiment{}, false
	}
	return e.sentiment, true
}

// set stores s and drops any expired entries.
func (c *sentimentCache) set(symbol string, s types.NewsSentiment) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.data, k)
		}
	}
	c.data[symbol] = cacheEntry{sentiment: s, storedAt: now}
}

func (c *sentimentCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
}

func (c *sentimentCache) symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.data))
	for s := range c.data {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// NewService creates a service reading headlines from source and scoring
// them with scorer. The scorer is guarded by the service; callers must not
// share it elsewhere.
func NewService(source interfaces.HeadlineSource, scorer interfaces.SentimentAnalyzer, cfg ServiceConfig) *Service {
	return &Service{
		source: source,
		cfg:    cfg,
		scorer: scorer,
		cache:  newSentimentCache(cfg.CacheDuration),
	}
}

// GetSentiment returns the aggregated headline sentiment for symbol, from
// cache when fresh. A fetch failure degrades to a neutral, uncached result.
func (s *Service) GetSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	if !s.cfg.Enabled {
		return neutral(symbol, "Sentiment analysis disabled"), nil
	}

	if cached, ok := s.cache.get(symbol); ok {
		logger.Debug(ctx, "Using cached sentiment", "symbol", symbol, "age_minutes", time.Since(cached.FetchedAt).Minutes())
		return cached, nil
	}

	logger.Info(ctx, "Fetching fresh news sentiment", "symbol", symbol)
	result, err := s.fetchFresh(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return types.NewsSentiment{}, ctx.Err()
		}
		logger.ErrorWithErr(ctx, "Failed to fetch sentiment", err, "symbol", symbol)
		return neutral(symbol, "Failed to fetch headlines: "+err.Error()), nil
	}

	s.cache.set(symbol, result)
	return result, nil
}

// RefreshSentiment bypasses the cache and stores the fresh result.
func (s *Service) RefreshSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	result, err := s.fetchFresh(ctx, symbol)
	if err != nil {
		return types.NewsSentiment{}, err
	}
	s.cache.set(symbol, result)
	return result, nil
}

func (s *Service) fetchFresh(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	op := logger.StartOperation(ctx, "news.fetch", "symbol", symbol)
	headlines, err := s.source.Fetch(op.Context(), symbol)
	if err != nil {
		op.EndWithError(err)
		return types.NewsSentiment{}, err
	}
	if s.cfg.MaxHeadlines > 0 && len(headlines) > s.cfg.MaxHeadlines {
		headlines = headlines[:s.cfg.MaxHeadlines]
	}
	result := s.Score(symbol, headlines)
	op.End("headlines", len(headlines), "score", result.Score)
	return result, nil
}

// Score scores headlines, newest first, and aggregates them.
func (s *Service) Score(symbol string, headlines []types.Headline) types.NewsSentiment {
	scored := make([]types.ScoredHeadline, len(headlines))
	results := make([]types.SentimentResult, len(headlines))

	s.scoreMu.Lock()
	for i, h := range headlines {
		results[i] = s.scorer.Analyze(h.Text())
		scored[i] = types.ScoredHeadline{Headline: h, Result: results[i]}
	}
	s.scoreMu.Unlock()

	score := sentiment.Aggregate(results)
	return types.NewsSentiment{
		Symbol:    symbol,
		Score:     score,
		Label:     sentiment.LabelFor(score),
		Headlines: scored,
		FetchedAt: s.cache.now(),
	}
}

// ClearCache removes all cached sentiment data
func (s *Service) ClearCache() {
	s.cache.clear()
}

// GetCachedSymbols returns the symbols with cached sentiment, sorted.
func (s *Service) GetCachedSymbols() []string {
	return s.cache.symbols()
}

func neutral(symbol, summary string) types.NewsSentiment {
	return types.NewsSentiment{
		Symbol:    symbol,
		Label:     types.LabelNeutral,
		Headlines: []types.ScoredHeadline{},
		Summary:   summary,
		FetchedAt: time.Now(),
	}
}
