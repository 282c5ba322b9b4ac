package backtest

import (
	"math"

	"sentiment-trader/internal/ta"
	"sentiment-trader/internal/types"
)

// SizeInput is what a sizer sees when the engine opens a position.
type SizeInput struct {
	Cash           float64
	Price          float64
	CommissionRate float64
	// Confidence of the BUY decision, in [0,1].
	Confidence float64
	// Bars up to and including the current one.
	Bars []types.PriceBar
}

// Sizer decides how many units a BUY opens. The engine clamps the answer
// to what cash can pay for, commission included.
type Sizer interface {
	Name() string
	Size(in SizeInput) int64
}

// NewSizer builds the sizer named by cfg.Policy. An empty policy is AllIn.
func NewSizer(cfg types.SizingConfig) (Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case types.SizingFixedFraction:
		return FixedFraction{Fraction: cfg.Fraction}, nil
	case types.SizingFixedQuantity:
		return FixedQuantity{Quantity: cfg.Quantity}, nil
	case types.SizingVolatilityScaled:
		return VolatilityScaled{RiskFraction: cfg.RiskFraction, ATRMultiple: cfg.ATRMultiple, ATRPeriod: cfg.ATRPeriod}, nil
	case types.SizingRiskScaled:
		return RiskScaled{BaseFraction: cfg.BaseFraction, MaxFraction: cfg.MaxFraction, VolatilityWindow: cfg.VolatilityWindow}, nil
	default:
		return AllIn{}, nil
	}
}

// AllIn spends all available cash.
type AllIn struct{}

func (AllIn) Name() string { return types.SizingAllIn }

func (AllIn) Size(in SizeInput) int64 {
	return affordable(in.Cash, in.Price, in.CommissionRate)
}

// FixedFraction spends a fixed share of available cash.
type FixedFraction struct {
	Fraction float64
}

func (FixedFraction) Name() string { return types.SizingFixedFraction }

func (f FixedFraction) Size(in SizeInput) int64 {
	return affordable(in.Cash*f.Fraction, in.Price, in.CommissionRate)
}

// FixedQuantity buys the same number of units every time.
type FixedQuantity struct {
	Quantity int64
}

func (FixedQuantity) Name() string { return types.SizingFixedQuantity }

func (f FixedQuantity) Size(SizeInput) int64 { return f.Quantity }

// VolatilityScaled risks RiskFraction of cash against a stop placed
// ATRMultiple ATRs away. Without enough history for the ATR it falls back
// to committing RiskFraction of cash.
type VolatilityScaled struct {
	RiskFraction float64
	ATRMultiple  float64
	ATRPeriod    int
}

func (VolatilityScaled) Name() string { return types.SizingVolatilityScaled }

func (v VolatilityScaled) Size(in SizeInput) int64 {
	period := v.ATRPeriod
	if period <= 0 {
		period = 14
	}
	mult := v.ATRMultiple
	if mult <= 0 {
		mult = 2
	}

	h := make([]float64, len(in.Bars))
	l := make([]float64, len(in.Bars))
	c := make([]float64, len(in.Bars))
	for i, b := range in.Bars {
		h[i], l[i], c[i] = b.High, b.Low, b.Close
	}
	atr := ta.ATR(h, l, c, period)
	if math.IsNaN(atr) || atr <= 0 {
		return affordable(in.Cash*v.RiskFraction, in.Price, in.CommissionRate)
	}
	q := math.Floor(in.Cash * v.RiskFraction / (mult * atr))
	if limit := affordable(in.Cash, in.Price, in.CommissionRate); q > float64(limit) {
		return limit
	}
	return int64(q)
}

// affordable is the largest whole quantity whose cost plus commission fits in cash.
func affordable(cash, price, rate float64) int64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	q := math.Floor(cash / (price * (1 + rate)))
	if q >= math.MaxInt64 {
		return math.MaxInt64
	}
	// Pull back a unit when float rounding overshoots the budget.
	for q > 0 && q*price*(1+rate) > cash {
		q--
	}
	return int64(q)
}
