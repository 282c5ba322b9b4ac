package backtest

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/types"
)

// Sweep runs every config over the same bars on at most workers goroutines.
// Results are returned in config order. All configs are validated before any
// run starts; the first run error cancels the rest.
func Sweep(ctx context.Context, r interfaces.Runner, bars []types.PriceBar, configs []types.BacktestConfig, workers int) ([]*types.BacktestResult, error) {
	for i, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config %d: %w", i, err)
		}
	}
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*types.BacktestResult, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cfg := range configs {
		g.Go(func() error {
			res, err := r.Run(gctx, bars, cfg)
			if err != nil {
				return fmt.Errorf("config %d (%s): %w", i, cfg.Symbol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Grid expands base into one config per threshold pair and sentiment weight.
// Pairs with sell >= buy are skipped. TechnicalWeight is set to 1 - weight.
func Grid(base types.BacktestConfig, buyThresholds, sellThresholds, sentimentWeights []float64) []types.BacktestConfig {
	if len(sentimentWeights) == 0 {
		sentimentWeights = []float64{base.SentimentWeight}
	}
	var out []types.BacktestConfig
	for _, buy := range buyThresholds {
		for _, sell := range sellThresholds {
			if sell >= buy {
				continue
			}
			for _, w := range sentimentWeights {
				c := base
				c.BuyThreshold, c.SellThreshold = buy, sell
				c.SentimentWeight, c.TechnicalWeight = w, 1-w
				out = append(out, c)
			}
		}
	}
	return out
}
