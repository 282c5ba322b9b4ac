package types

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConfiguration marks an invalid configuration. Raised before any simulation step.
	ErrConfiguration = errors.New("configuration error")
	// ErrData marks a price series that violates the provider contract.
	ErrData = errors.New("data error")
)

// Validate checks threshold ordering and weight bounds.
func (p SignalParams) Validate() error {
	if !inRange(p.BuyThreshold, -1, 1) {
		return fmt.Errorf("%w: buy_threshold %.4f outside [-1,1]", ErrConfiguration, p.BuyThreshold)
	}
	if !inRange(p.SellThreshold, -1, 1) {
		return fmt.Errorf("%w: sell_threshold %.4f outside [-1,1]", ErrConfiguration, p.SellThreshold)
	}
	if p.SellThreshold >= p.BuyThreshold {
		return fmt.Errorf("%w: sell_threshold (%.4f) must be below buy_threshold (%.4f)",
			ErrConfiguration, p.SellThreshold, p.BuyThreshold)
	}
	if !inRange(p.SentimentWeight, 0, 1) {
		return fmt.Errorf("%w: sentiment_weight %.4f outside [0,1]", ErrConfiguration, p.SentimentWeight)
	}
	if !inRange(p.TechnicalWeight, 0, 1) {
		return fmt.Errorf("%w: technical_weight %.4f outside [0,1]", ErrConfiguration, p.TechnicalWeight)
	}
	return nil
}

// WeightsNormalized reports whether the blend weights sum to 1.
func (p SignalParams) WeightsNormalized() bool {
	return math.Abs(p.SentimentWeight+p.TechnicalWeight-1) < 1e-9
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
