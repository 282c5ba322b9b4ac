package performance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"sentiment-trader/internal/types"
)

// DefaultAnnualization is the trading days per year used when none is given.
const DefaultAnnualization = 252

// varConfidence is the quantile level of the historical VaR.
const varConfidence = 0.95

// Analyzer computes Stats from an equity curve and its fills. Every ratio
// that would divide by zero is reported as 0.
type Analyzer struct {
	// AnnualizationFactor scales per-bar ratios; 0 means DefaultAnnualization.
	AnnualizationFactor float64
}

// Analyze uses the default annualization factor.
func Analyze(equity []types.EquityPoint, fills []types.Fill, initialCapital float64) types.Stats {
	return Analyzer{}.Analyze(equity, fills, initialCapital)
}

func (a Analyzer) Analyze(equity []types.EquityPoint, fills []types.Fill, initialCapital float64) types.Stats {
	var s types.Stats

	if len(equity) > 0 {
		s.TotalReturn = equity[len(equity)-1].Value - initialCapital
		if initialCapital != 0 {
			s.TotalReturnPercent = s.TotalReturn / initialCapital * 100
		}
	}
	s.MaxDrawdown = MaxDrawdown(equity)

	returns := Returns(equity)
	ann := a.AnnualizationFactor
	if ann <= 0 {
		ann = DefaultAnnualization
	}
	s.SharpeRatio = sharpe(returns, ann)
	s.SortinoRatio = sortino(returns, ann)
	s.Volatility = volatility(returns, ann)
	s.VaR95 = historicalVaR(returns, varConfidence)

	tradeStats(fills, &s)
	return s
}

// Returns are the simple per-bar returns of the equity curve. A bar that
// follows a non-positive value contributes 0.
func Returns(equity []types.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if prev := equity[i-1].Value; prev > 0 {
			out[i-1] = (equity[i].Value - prev) / prev
		}
	}
	return out
}

// MaxDrawdown is the deepest peak-to-trough decline as a percent, always <= 0.
func MaxDrawdown(equity []types.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0].Value
	worst := 0.0
	for _, p := range equity {
		peak = math.Max(peak, p.Value)
		if peak <= 0 {
			continue
		}
		if dd := (p.Value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

func sharpe(returns []float64, ann float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, sd := stat.MeanStdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return mean / sd * math.Sqrt(ann)
}

func sortino(returns []float64, ann float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sumSq, n := 0.0, 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	downside := math.Sqrt(sumSq / float64(n))
	if downside == 0 {
		return 0
	}
	return stat.Mean(returns, nil) / downside * math.Sqrt(ann)
}

// volatility is the annualized sample standard deviation, in percent.
func volatility(returns []float64, ann float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(ann) * 100
}

// historicalVaR is the loss at the given confidence, as a positive percent.
func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * (1 - confidence))
	idx = min(max(idx, 0), len(sorted)-1)
	if sorted[idx] >= 0 {
		return 0
	}
	return -sorted[idx] * 100
}

// tradeStats fills the closed-trade figures. Only SELL fills close a trade
// and their NetPnL is what counts.
func tradeStats(fills []types.Fill, s *types.Stats) {
	var (
		wins, losses          int
		winSum, lossSum       float64
		winStreak, lossStreak int
	)
	for _, f := range fills {
		if !f.Closed() {
			continue
		}
		s.ClosedTrades++
		switch pnl := f.NetPnL; {
		case pnl > 0:
			wins++
			winSum += pnl
			s.LargestWin = math.Max(s.LargestWin, pnl)
			winStreak++
			lossStreak = 0
		case pnl < 0:
			losses++
			lossSum += pnl
			s.LargestLoss = math.Min(s.LargestLoss, pnl)
			lossStreak++
			winStreak = 0
		default:
			winStreak, lossStreak = 0, 0
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, winStreak)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, lossStreak)
	}

	if s.ClosedTrades > 0 {
		s.WinRate = float64(wins) / float64(s.ClosedTrades) * 100
	}
	if wins > 0 {
		s.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = lossSum / float64(losses)
		s.ProfitFactor = winSum / math.Abs(lossSum)
	}
}
