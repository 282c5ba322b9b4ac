package interfaces

import (
	"context"

	"sentiment-trader/internal/types"
)

// Runner replays a price series under one configuration.
type Runner interface {
	Run(ctx context.Context, bars []types.PriceBar, cfg types.BacktestConfig) (*types.BacktestResult, error)
}
