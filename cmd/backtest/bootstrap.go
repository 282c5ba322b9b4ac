package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/joho/godotenv"

	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/marketdata"
	"sentiment-trader/internal/news"
	"sentiment-trader/internal/sentiment"
	"sentiment-trader/internal/storage"
	"sentiment-trader/internal/store"
	"sentiment-trader/internal/types"
)

// scorerStream is the second PCG word for headline scoring noise.
const scorerStream = 0x5c0e5c0e5c0e5c0e

// initializeSystem loads .env and starts the logger, which owns the tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = logger.Shutdown(ctx)
}

// loadConfig reads path; a missing file at the default path falls back to
// the built-in defaults with env overrides.
func loadConfig(ctx context.Context, path string, explicit bool) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, os.ErrNotExist) {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}

	logger.Info(ctx, "No config file, using defaults", "path", path)
	cfg = store.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadBars reads the price CSV and trims it to the configured window.
func loadBars(ctx context.Context, path string, bc types.BacktestConfig) ([]types.PriceBar, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no price file given (-prices or data.prices_csv)", types.ErrConfiguration)
	}
	bars, err := marketdata.LoadFile(path)
	if err != nil {
		return nil, err
	}
	filtered := marketdata.Filter(bars, bc.StartDate, bc.EndDate)
	logger.Info(ctx, "Price series loaded", "path", path, "bars", len(bars), "in_window", len(filtered))
	return filtered, nil
}

// loadHeadlines parses a saved listing page, or scrapes the configured
// sources when live is set. It returns nil when neither is requested.
func loadHeadlines(ctx context.Context, cfg *store.Config, htmlPath, sourceName string, live bool) ([]types.Headline, error) {
	symbol := cfg.Backtest.Symbol
	switch {
	case htmlPath != "":
		srcs, err := news.SelectSources([]string{sourceName})
		if err != nil {
			return nil, err
		}
		f, err := os.Open(htmlPath)
		if err != nil {
			return nil, fmt.Errorf("open headlines: %w", err)
		}
		defer f.Close()
		hs, err := news.ParseHeadlines(f, srcs[0], symbol)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Headlines parsed", "path", htmlPath, "source", srcs[0].Name, "count", len(hs))
		return hs, nil

	case live:
		srcs, err := news.SelectSources(cfg.News.Sources)
		if err != nil {
			return nil, err
		}
		scraper := news.NewScraper(srcs,
			time.Duration(cfg.News.TimeoutSeconds)*time.Second,
			cfg.News.UserAgent,
			cfg.News.MaxHeadlines)
		hs, err := scraper.Fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Headlines scraped", "symbol", symbol, "count", len(hs))
		return hs, nil
	}
	return nil, nil
}

// applyHeadlineSentiment scores headlines per day and writes the scores
// onto the matching bars. Bars without headlines keep their own sentiment.
func applyHeadlineSentiment(bars []types.PriceBar, headlines []types.Headline, seed uint64) []types.PriceBar {
	if len(headlines) == 0 {
		return bars
	}
	scorer := sentiment.NewScorer(rand.New(rand.NewPCG(seed, scorerStream)))
	return marketdata.ApplySentiment(bars, sentiment.ScoreDaily(scorer, headlines))
}

func openStorage(ctx context.Context, cfg *store.Config) *storage.Store {
	if !cfg.Storage.Enabled {
		return nil
	}
	st, err := storage.Open(storage.Config{DSN: cfg.Storage.DSN})
	if err != nil {
		logger.Warn(ctx, "Storage unavailable, runs will not be persisted", "error", err)
		return nil
	}
	return st
}
