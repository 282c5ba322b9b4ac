package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sentiment-trader/internal/backtest"
	"sentiment-trader/internal/backtest/backtestobs"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/metrics"
	"sentiment-trader/internal/news"
	"sentiment-trader/internal/sentiment"
	"sentiment-trader/internal/server"
	"sentiment-trader/internal/storage"
	"sentiment-trader/internal/store"
	"sentiment-trader/internal/tradelog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	logRequests := flag.Bool("log-requests", false, "log every request, not only failures")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *addr, *logRequests); err != nil {
		logger.ErrorWithErr(ctx, "Server stopped with error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = logger.Shutdown(shutdownCtx)
}

func run(ctx context.Context, configPath, addr string, logRequests bool) error {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	defaults, err := cfg.BacktestConfig()
	if err != nil {
		return err
	}

	var st *storage.Store
	if cfg.Storage.Enabled {
		st, err = storage.Open(storage.Config{DSN: cfg.Storage.DSN})
		if err != nil {
			return err
		}
		defer st.Close()
	}

	newsSvc, err := newsService(cfg)
	if err != nil {
		return err
	}

	journal := tradelog.New(cfg.TradeLog.Dir)
	if n := cfg.TradeLog.RetentionDays; n > 0 {
		if err := journal.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}

	rec := metrics.NewRecorder()
	srv := server.New(server.Deps{
		Runner:       backtestobs.Wrap(backtest.New(), rec),
		News:         newsSvc,
		Store:        st,
		Journal:      journal,
		Metrics:      rec,
		Defaults:     defaults,
		SweepWorkers: cfg.Sweep.Workers,
		LogRequests:  logRequests,
	})

	logger.Info(ctx, "Server starting",
		"addr", addr,
		"storage", st != nil,
		"news_enabled", cfg.News.Enabled,
		"symbol", defaults.Symbol)
	return srv.Run(ctx, addr)
}

func newsService(cfg *store.Config) (*news.Service, error) {
	srcs, err := news.SelectSources(cfg.News.Sources)
	if err != nil {
		return nil, err
	}
	scraper := news.NewScraper(srcs,
		time.Duration(cfg.News.TimeoutSeconds)*time.Second,
		cfg.News.UserAgent,
		cfg.News.MaxHeadlines)
	scorer := sentiment.NewScorer(rand.New(rand.NewPCG(cfg.Backtest.Seed, uint64(time.Now().UnixNano()))))
	return news.NewService(scraper, scorer, news.ServiceConfig{
		MaxHeadlines:  cfg.News.MaxHeadlines,
		CacheDuration: cfg.NewsCacheTTL(),
		Enabled:       cfg.News.Enabled,
	}), nil
}
