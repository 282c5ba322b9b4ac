package backtest

import (
	"errors"
	"math"
	"testing"

	"sentiment-trader/internal/types"
)

func TestNewSizer(t *testing.T) {
	tests := []struct {
		cfg      types.SizingConfig
		wantName string
		wantErr  bool
	}{
		{types.SizingConfig{}, types.SizingAllIn, false},
		{types.SizingConfig{Policy: types.SizingFixedFraction, Fraction: 0.3}, types.SizingFixedFraction, false},
		{types.SizingConfig{Policy: types.SizingFixedQuantity, Quantity: 5}, types.SizingFixedQuantity, false},
		{types.SizingConfig{Policy: types.SizingVolatilityScaled, RiskFraction: 0.02}, types.SizingVolatilityScaled, false},
		{types.SizingConfig{Policy: types.SizingRiskScaled}, types.SizingRiskScaled, false},
		{types.SizingConfig{Policy: types.SizingRiskScaled, MaxFraction: 1.5}, "", true},
		{types.SizingConfig{Policy: "kelly"}, "", true},
	}
	for _, tt := range tests {
		s, err := NewSizer(tt.cfg)
		if tt.wantErr {
			if !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("NewSizer(%+v) err = %v, want ErrConfiguration", tt.cfg, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewSizer(%+v): %v", tt.cfg, err)
		}
		if s.Name() != tt.wantName {
			t.Errorf("name = %q, want %q", s.Name(), tt.wantName)
		}
	}
}

func TestAffordable(t *testing.T) {
	tests := []struct {
		cash, price, rate float64
		want              int64
	}{
		{10000, 100, 0, 100},
		{10000, 100, 0.01, 99},
		{99.99, 100, 0, 0},
		{100, 0, 0, 0},
		{0, 10, 0, 0},
		{1e300, 1, 0, math.MaxInt64},
	}
	for _, tt := range tests {
		if got := affordable(tt.cash, tt.price, tt.rate); got != tt.want {
			t.Errorf("affordable(%v, %v, %v) = %d, want %d", tt.cash, tt.price, tt.rate, got, tt.want)
		}
	}
}

func TestVolatilityScaledUsesATR(t *testing.T) {
	bars := make([]types.PriceBar, 20)
	for i := range bars {
		b := bar(i, 100, 0)
		b.High, b.Low = 101, 99
		bars[i] = b
	}
	v := VolatilityScaled{RiskFraction: 0.02, ATRMultiple: 2, ATRPeriod: 14}
	// ATR = 2, stop distance 4, risk budget 200 -> 50 units
	if got := v.Size(SizeInput{Cash: 10000, Price: 100, Bars: bars}); got != 50 {
		t.Errorf("Size = %d, want 50", got)
	}
}

func TestVolatilityScaledTinyATRStaysAffordable(t *testing.T) {
	bars := make([]types.PriceBar, 20)
	for i := range bars {
		b := bar(i, 100, 0)
		b.High = 100 + 1e-12
		bars[i] = b
	}
	v := VolatilityScaled{RiskFraction: 0.1, ATRMultiple: 2, ATRPeriod: 14}
	if got := v.Size(SizeInput{Cash: 1e11, Price: 100, Bars: bars}); got != 1_000_000_000 {
		t.Errorf("Size = %d, want 1000000000", got)
	}
}

// ranged builds a two bar series moving from 100 to close, with the last
// bar spanning [low, high].
func ranged(close, low, high float64) []types.PriceBar {
	prev := bar(0, 100, 0)
	last := bar(1, close, 0)
	last.Low, last.High = low, high
	return []types.PriceBar{prev, last}
}

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		name       string
		bars       []types.PriceBar
		confidence float64
		want       RiskLevel
	}{
		{"small move, confident, mid range", ranged(101, 90, 110), 0.9, RiskLow},
		{"medium move, middling confidence", ranged(107, 90, 120), 0.5, RiskMedium},
		{"large move, weak, at range high", ranged(115, 100, 115), 0.2, RiskHigh},
		{"large move, confident, at range low", ranged(111, 111, 130), 0.7, RiskMedium},
		{"single flat bar scores confidence only", []types.PriceBar{bar(0, 100, 0)}, 0.1, RiskLow},
		{"no bars", nil, 0.1, RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssessRisk(tt.bars, tt.confidence); got != tt.want {
				t.Errorf("AssessRisk = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRiskScaledFraction(t *testing.T) {
	tests := []struct {
		name  string
		sizer RiskScaled
		bars  []types.PriceBar
		conf  float64
		want  float64
	}{
		{"low risk", RiskScaled{}, ranged(101, 90, 110), 0.9, 0.05 * 0.9 * 1.5},
		{"medium risk", RiskScaled{}, ranged(107, 90, 120), 0.5, 0.05 * 0.5},
		{"high risk", RiskScaled{}, ranged(115, 100, 115), 0.2, 0.05 * 0.2 * 0.5},
		{"capped at max fraction", RiskScaled{BaseFraction: 0.2}, ranged(101, 90, 110), 0.9, 0.10},
		{"custom cap", RiskScaled{BaseFraction: 0.2, MaxFraction: 0.15}, ranged(101, 90, 110), 0.9, 0.15},
		{"confidence clamped to one", RiskScaled{}, ranged(101, 90, 110), 3, 0.05 * 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sizer.Fraction(SizeInput{Cash: 10000, Price: 100, Confidence: tt.conf, Bars: tt.bars})
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Fraction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRiskScaledVolatilityMultiplier(t *testing.T) {
	quiet := make([]types.PriceBar, 5)
	wild := make([]types.PriceBar, 5)
	for i := range quiet {
		quiet[i] = bar(i, 100, 0)
		c := 100.0
		if i%2 == 1 {
			c = 120
		}
		wild[i] = bar(i, c, 0)
	}
	r := RiskScaled{VolatilityWindow: 4}

	if got := volatilityMultiplier(quiet, 4); got != 1.3 {
		t.Errorf("quiet multiplier = %v, want 1.3", got)
	}
	if got := volatilityMultiplier(wild, 4); got != 0.7 {
		t.Errorf("wild multiplier = %v, want 0.7", got)
	}
	if got := volatilityMultiplier(quiet, 10); got != 1 {
		t.Errorf("short history multiplier = %v, want 1", got)
	}

	// 5% * 0.9 * 1.5 (low risk) * 1.3 = 8.775% of 10000 at 100 -> 8 units
	if got := r.Size(SizeInput{Cash: 10000, Price: 100, Confidence: 0.9, Bars: quiet}); got != 8 {
		t.Errorf("quiet Size = %d, want 8", got)
	}
}
