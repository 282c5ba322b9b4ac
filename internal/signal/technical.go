package signal

import (
	"math"

	"sentiment-trader/internal/ta"
	"sentiment-trader/internal/types"
)

// DefaultLookback is the trailing window used when TechnicalScorer.Lookback is 0.
const DefaultLookback = 60

const (
	rsiPeriod     = 14
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9
	smaShort      = 20
	smaLong       = 50
	bbWindow      = 20
	bbStdDev      = 2.0
	stochPeriod   = 14
	priceVsSMACap = 0.5
)

// TechnicalScorer maps trailing price bars to a score in [-1,1].
type TechnicalScorer struct {
	Lookback int
}

// NewTechnicalScorer creates a scorer over the given trailing window.
func NewTechnicalScorer(lookback int) *TechnicalScorer {
	return &TechnicalScorer{Lookback: lookback}
}

// Score evaluates the last bar of bars. Callers pass bars[:i+1] so no future
// bar is ever seen. Each defined indicator contributes one vote; the result
// is the mean vote, 0 when nothing is defined yet.
func (t *TechnicalScorer) Score(bars []types.PriceBar) float64 {
	lookback := t.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	if len(bars) == 0 {
		return 0
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}
	price := closes[len(closes)-1]

	score, count := 0.0, 0
	vote := func(v float64) {
		score += v
		count++
	}

	if rsi := ta.RSI(closes, rsiPeriod); !math.IsNaN(rsi) {
		switch {
		case rsi < 30:
			vote(0.7)
		case rsi > 70:
			vote(-0.7)
		case rsi >= 40 && rsi <= 60:
			vote(0.1)
		default:
			vote(0)
		}
	}

	if macd, sig, _ := ta.MACD(closes, macdFast, macdSlow, macdSignal); !math.IsNaN(macd) && !math.IsNaN(sig) {
		if macd > sig {
			vote(0.5)
		} else {
			vote(-0.5)
		}
	}

	sma20 := ta.SMA(closes, smaShort)
	if sma50 := ta.SMA(closes, smaLong); !math.IsNaN(sma20) && !math.IsNaN(sma50) {
		if sma20 > sma50 {
			vote(0.6)
		} else {
			vote(-0.6)
		}
	}

	if !math.IsNaN(sma20) && sma20 != 0 {
		vote(clamp((price-sma20)/sma20*2, -priceVsSMACap, priceVsSMACap))
	}

	if pb := ta.PercentB(closes, bbWindow, bbStdDev); !math.IsNaN(pb) {
		switch {
		case pb < 0.2:
			vote(0.4)
		case pb > 0.8:
			vote(-0.4)
		default:
			vote(0)
		}
	}

	if k := ta.StochasticK(highs, lows, closes, stochPeriod); !math.IsNaN(k) {
		switch {
		case k < 20:
			vote(0.3)
		case k > 80:
			vote(-0.3)
		default:
			vote(0)
		}
	}

	if count == 0 {
		return 0
	}
	return clamp(score/float64(count), -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
