package backtestobs

import (
	"context"
	"time"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/metrics"
	"sentiment-trader/internal/trace"
	"sentiment-trader/internal/types"
)

type observableRunner struct {
	runner  interfaces.Runner
	metrics *metrics.Recorder
}

var _ interfaces.Runner = (*observableRunner)(nil)

// Wrap adds a span, start/finish logs and prometheus metrics around every run.
func Wrap(r interfaces.Runner, m *metrics.Recorder) interfaces.Runner {
	if m == nil {
		m = metrics.NewRecorder()
	}
	return &observableRunner{
		runner:  r,
		metrics: m,
	}
}

func (o *observableRunner) Run(ctx context.Context, bars []types.PriceBar, cfg types.BacktestConfig) (*types.BacktestResult, error) {
	ctx, span := trace.StartSpan(ctx, "backtest.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting backtest",
		"symbol", cfg.Symbol,
		"bars", len(bars),
		"initial_capital", cfg.InitialCapital,
		"buy_threshold", cfg.BuyThreshold,
		"sell_threshold", cfg.SellThreshold,
		"seed", cfg.Seed,
	)

	result, err := o.runner.Run(ctx, bars, cfg)
	o.metrics.RecordRun(cfg.Symbol, result, err, time.Since(start))
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Backtest failed", err,
			"symbol", cfg.Symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Backtest completed",
		"symbol", cfg.Symbol,
		"final_value", result.FinalValue,
		"total_return_pct", result.TotalReturnPercent,
		"max_drawdown_pct", result.MaxDrawdown,
		"sharpe", result.SharpeRatio,
		"fills", len(result.Trades),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
