package backtest

import (
	"math"

	"sentiment-trader/internal/ta"
	"sentiment-trader/internal/types"
)

// RiskLevel grades how risky it is to act on a signal.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	defaultBaseFraction     = 0.05
	defaultMaxFraction      = 0.10
	defaultVolatilityWindow = 20

	// Daily move thresholds, percent.
	moveMedium = 5.0
	moveHigh   = 10.0
)

// AssessRisk scores the day's move, the decision confidence and where the
// close sits in the bar's range, one to three points each. Seven or more
// points is high risk, four or more medium. The move is skipped without a
// previous bar and the range position when the bar has no range.
func AssessRisk(bars []types.PriceBar, confidence float64) RiskLevel {
	score := 0

	if n := len(bars); n >= 2 && bars[n-2].Close > 0 {
		move := math.Abs((bars[n-1].Close - bars[n-2].Close) / bars[n-2].Close * 100)
		switch {
		case move > moveHigh:
			score += 3
		case move > moveMedium:
			score += 2
		default:
			score++
		}
	}

	switch {
	case confidence < 0.3:
		score += 3
	case confidence < 0.6:
		score += 2
	default:
		score++
	}

	if n := len(bars); n > 0 {
		b := bars[n-1]
		if b.Low > 0 && b.High > b.Low {
			pos := (b.Close - b.Low) / (b.High - b.Low)
			if pos > 0.9 || pos < 0.1 {
				score += 2
			} else {
				score++
			}
		}
	}

	switch {
	case score >= 7:
		return RiskHigh
	case score >= 4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (l RiskLevel) multiplier() float64 {
	switch l {
	case RiskLow:
		return 1.5
	case RiskMedium:
		return 1.0
	default:
		return 0.5
	}
}

// volatilityMultiplier shrinks entries in volatile markets and grows them in
// quiet ones. Daily volatility is the deviation of close-to-close returns.
func volatilityMultiplier(bars []types.PriceBar, window int) float64 {
	if len(bars) < window+1 {
		return 1
	}
	tail := bars[len(bars)-window-1:]
	rets := make([]float64, 0, window)
	for i := 1; i < len(tail); i++ {
		if tail[i-1].Close <= 0 {
			return 1
		}
		rets = append(rets, tail[i].Close/tail[i-1].Close-1)
	}
	vol := ta.StdDev(rets, window)
	switch {
	case math.IsNaN(vol):
		return 1
	case vol > 0.05:
		return 0.7
	case vol < 0.02:
		return 1.3
	default:
		return 1
	}
}

// RiskScaled commits BaseFraction of equity, scaled by the decision
// confidence, the risk level multiplier and the volatility multiplier, and
// never more than MaxFraction. The engine only buys when flat, so equity is
// the available cash.
type RiskScaled struct {
	BaseFraction     float64
	MaxFraction      float64
	VolatilityWindow int
}

func (RiskScaled) Name() string { return types.SizingRiskScaled }

// Fraction is the share of equity an entry commits.
func (r RiskScaled) Fraction(in SizeInput) float64 {
	base := r.BaseFraction
	if base <= 0 {
		base = defaultBaseFraction
	}
	limit := r.MaxFraction
	if limit <= 0 {
		limit = defaultMaxFraction
	}
	window := r.VolatilityWindow
	if window <= 0 {
		window = defaultVolatilityWindow
	}

	conf := math.Max(0, math.Min(1, in.Confidence))
	f := base * conf * AssessRisk(in.Bars, in.Confidence).multiplier() * volatilityMultiplier(in.Bars, window)
	return math.Min(f, limit)
}

func (r RiskScaled) Size(in SizeInput) int64 {
	return affordable(in.Cash*r.Fraction(in), in.Price, in.CommissionRate)
}
