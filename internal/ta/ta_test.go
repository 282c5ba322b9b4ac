package ta

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	if got := SMA(closes, 3); !almost(got, 4) {
		t.Errorf("SMA(3) = %v, want 4", got)
	}
	if got := SMA(closes, 6); !math.IsNaN(got) {
		t.Errorf("SMA with short history = %v, want NaN", got)
	}
}

func TestEMASeriesSeededWithSMA(t *testing.T) {
	s := EMASeries([]float64{2, 4, 6, 8}, 3)
	if !math.IsNaN(s[0]) || !math.IsNaN(s[1]) {
		t.Fatalf("leading values should be NaN, got %v", s[:2])
	}
	if !almost(s[2], 4) {
		t.Errorf("seed = %v, want 4", s[2])
	}
	// k = 0.5 -> 8*0.5 + 4*0.5
	if !almost(s[3], 6) {
		t.Errorf("ema[3] = %v, want 6", s[3])
	}
}

func TestRSIBounds(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	if got := RSI(up, 5); got != 100 {
		t.Errorf("RSI of rising series = %v, want 100", got)
	}
	flat := []float64{3, 3, 3, 3, 3, 3}
	if got := RSI(flat, 5); got != 50 {
		t.Errorf("RSI of flat series = %v, want 50", got)
	}
	down := []float64{6, 5, 4, 3, 2, 1}
	if got := RSI(down, 5); got != 0 {
		t.Errorf("RSI of falling series = %v, want 0", got)
	}
}

func TestMACDSign(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	macd, sig, hist := MACD(closes, 12, 26, 9)
	if math.IsNaN(macd) || math.IsNaN(sig) {
		t.Fatal("MACD should be defined with 60 bars")
	}
	if macd <= 0 {
		t.Errorf("MACD of rising series = %v, want > 0", macd)
	}
	if !almost(hist, macd-sig) {
		t.Errorf("hist = %v, want %v", hist, macd-sig)
	}
	if m, _, _ := MACD(closes[:30], 12, 26, 9); !math.IsNaN(m) {
		t.Errorf("MACD with 30 bars = %v, want NaN", m)
	}
}

func TestPercentBAndStochastic(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 10, 11, 12, 13}
	pb := PercentB(closes, 5, 2)
	if math.IsNaN(pb) || pb < 0 || pb > 1.5 {
		t.Errorf("PercentB = %v out of expected range", pb)
	}
	if got := PercentB([]float64{5, 5, 5}, 3, 2); !math.IsNaN(got) {
		t.Errorf("PercentB of flat band = %v, want NaN", got)
	}

	highs := []float64{2, 3, 4}
	lows := []float64{1, 1, 2}
	cl := []float64{1.5, 2.5, 4}
	if got := StochasticK(highs, lows, cl, 3); !almost(got, 100) {
		t.Errorf("StochasticK at high = %v, want 100", got)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{10, 12, 13}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 11, 12}
	// TRs: max(2, 2.5, 0.5)=2.5, max(2, 2, 0)=2
	if got := ATR(highs, lows, closes, 2); !almost(got, 2.25) {
		t.Errorf("ATR = %v, want 2.25", got)
	}
}
