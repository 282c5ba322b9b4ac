package types

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validConfig() BacktestConfig {
	return BacktestConfig{
		Symbol:          "AAPL",
		InitialCapital:  10000,
		BuyThreshold:    0.3,
		SellThreshold:   -0.3,
		SentimentWeight: 0.7,
		TechnicalWeight: 0.3,
	}
}

func TestBacktestConfigValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(c *BacktestConfig)
		wantErr bool
	}{
		{"valid", func(c *BacktestConfig) {}, false},
		{"zero capital", func(c *BacktestConfig) { c.InitialCapital = 0 }, true},
		{"negative capital", func(c *BacktestConfig) { c.InitialCapital = -5 }, true},
		{"nan capital", func(c *BacktestConfig) { c.InitialCapital = math.NaN() }, true},
		{"thresholds equal", func(c *BacktestConfig) { c.SellThreshold = 0.3 }, true},
		{"thresholds inverted", func(c *BacktestConfig) { c.BuyThreshold, c.SellThreshold = -0.3, 0.3 }, true},
		{"buy above 1", func(c *BacktestConfig) { c.BuyThreshold = 1.5 }, true},
		{"sell below -1", func(c *BacktestConfig) { c.SellThreshold = -1.5 }, true},
		{"weight above 1", func(c *BacktestConfig) { c.SentimentWeight = 1.2 }, true},
		{"negative weight", func(c *BacktestConfig) { c.TechnicalWeight = -0.1 }, true},
		{"weights not summing to one", func(c *BacktestConfig) { c.SentimentWeight, c.TechnicalWeight = 0.2, 0.2 }, false},
		{"commission of 1", func(c *BacktestConfig) { c.CommissionRate = 1 }, true},
		{"negative annualization", func(c *BacktestConfig) { c.AnnualizationFactor = -1 }, true},
		{"negative lookback", func(c *BacktestConfig) { c.Lookback = -1 }, true},
		{"end before start", func(c *BacktestConfig) { c.StartDate, c.EndDate = start, start.AddDate(0, 0, -1) }, true},
		{"unknown sizing", func(c *BacktestConfig) { c.Sizing.Policy = "martingale" }, true},
		{"fixed fraction without fraction", func(c *BacktestConfig) { c.Sizing.Policy = SizingFixedFraction }, true},
		{"fixed quantity", func(c *BacktestConfig) { c.Sizing = SizingConfig{Policy: SizingFixedQuantity, Quantity: 10} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("Validate() = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestSignalCountsAdd(t *testing.T) {
	var c SignalCounts
	for _, a := range []Action{ActionBuy, ActionHold, ActionHold, ActionSell} {
		c.Add(a)
	}
	if c != (SignalCounts{Buy: 1, Sell: 1, Hold: 2}) {
		t.Errorf("counts = %+v", c)
	}
}
