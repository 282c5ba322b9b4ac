package interfaces

import (
	"context"

	"sentiment-trader/internal/types"
)

// HeadlineSource fetches recent headlines for a symbol, newest first.
type HeadlineSource interface {
	Fetch(ctx context.Context, symbol string) ([]types.Headline, error)
}
