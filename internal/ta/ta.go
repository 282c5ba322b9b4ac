package ta

import "math"

// All functions evaluate the last element of the input and return NaN when
// there is not enough history.

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// EMASeries returns the exponential moving average for every index, seeded
// with the SMA of the first n values. Indices before n-1 are NaN.
func EMASeries(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(vals) < n || n <= 0 {
		return out
	}
	k := 2.0 / float64(n+1)
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += vals[i]
	}
	out[n-1] = seed / float64(n)
	for i := n; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		if gain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist float64) {
	nan := math.NaN()
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal-1 {
		return nan, nan, nan
	}
	fastS := EMASeries(closes, fast)
	slowS := EMASeries(closes, slow)
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastS[i]-slowS[i])
	}
	sigS := EMASeries(line, signal)
	macd = line[len(line)-1]
	sig = sigS[len(sigS)-1]
	return macd, sig, macd - sig
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// PercentB is the position of the last close inside the Bollinger band.
// NaN when the band has zero width.
func PercentB(closes []float64, n int, k float64) float64 {
	_, up, low := Bollinger(closes, n, k)
	if math.IsNaN(up) || up == low {
		return math.NaN()
	}
	return (closes[len(closes)-1] - low) / (up - low)
}

// StochasticK is the fast %K over the last period bars.
func StochasticK(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) || period <= 0 || len(closes) < period {
		return math.NaN()
	}
	hh, ll := math.Inf(-1), math.Inf(1)
	for i := len(closes) - period; i < len(closes); i++ {
		hh = math.Max(hh, highs[i])
		ll = math.Min(ll, lows[i])
	}
	if hh == ll {
		return math.NaN()
	}
	return (closes[len(closes)-1] - ll) / (hh - ll) * 100
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if n <= 0 || len(closes) < n+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(n)
}
