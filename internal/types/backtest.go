package types

import (
	"fmt"
	"math"
	"time"
)

// Sizing policy names accepted in SizingConfig.Policy.
const (
	SizingAllIn            = "all_in"
	SizingFixedFraction    = "fixed_fraction"
	SizingFixedQuantity    = "fixed_quantity"
	SizingVolatilityScaled = "volatility_scaled"
	SizingRiskScaled       = "risk_scaled"
)

// SizingConfig selects the position sizing strategy of a backtest.
type SizingConfig struct {
	Policy string `json:"policy" yaml:"policy"`
	// FixedFraction: share of available cash committed per entry.
	Fraction float64 `json:"fraction,omitempty" yaml:"fraction"`
	// FixedQuantity: units bought per entry.
	Quantity int64 `json:"quantity,omitempty" yaml:"quantity"`
	// VolatilityScaled: share of equity risked against ATRMultiple * ATR(ATRPeriod).
	RiskFraction float64 `json:"risk_fraction,omitempty" yaml:"risk_fraction"`
	ATRMultiple  float64 `json:"atr_multiple,omitempty" yaml:"atr_multiple"`
	ATRPeriod    int     `json:"atr_period,omitempty" yaml:"atr_period"`
	// RiskScaled: BaseFraction of equity scaled by confidence, risk level and
	// volatility, capped at MaxFraction. Zero values mean 0.05, 0.10 and 20.
	BaseFraction     float64 `json:"base_fraction,omitempty" yaml:"base_fraction"`
	MaxFraction      float64 `json:"max_fraction,omitempty" yaml:"max_fraction"`
	VolatilityWindow int     `json:"volatility_window,omitempty" yaml:"volatility_window"`
}

func (s SizingConfig) Validate() error {
	switch s.Policy {
	case "", SizingAllIn:
	case SizingFixedFraction:
		if !(s.Fraction > 0 && s.Fraction <= 1) {
			return fmt.Errorf("%w: sizing fraction %v must be in (0,1]", ErrConfiguration, s.Fraction)
		}
	case SizingFixedQuantity:
		if s.Quantity <= 0 {
			return fmt.Errorf("%w: sizing quantity %d must be positive", ErrConfiguration, s.Quantity)
		}
	case SizingVolatilityScaled:
		if !(s.RiskFraction > 0 && s.RiskFraction <= 1) {
			return fmt.Errorf("%w: sizing risk_fraction %v must be in (0,1]", ErrConfiguration, s.RiskFraction)
		}
		if s.ATRMultiple < 0 || s.ATRPeriod < 0 {
			return fmt.Errorf("%w: sizing atr_multiple and atr_period must not be negative", ErrConfiguration)
		}
	case SizingRiskScaled:
		if s.BaseFraction < 0 || s.BaseFraction > 1 || s.MaxFraction < 0 || s.MaxFraction > 1 {
			return fmt.Errorf("%w: sizing base_fraction and max_fraction must be in [0,1]", ErrConfiguration)
		}
		if s.VolatilityWindow < 0 {
			return fmt.Errorf("%w: sizing volatility_window %d must not be negative", ErrConfiguration, s.VolatilityWindow)
		}
	default:
		return fmt.Errorf("%w: unknown sizing policy %q", ErrConfiguration, s.Policy)
	}
	return nil
}

// BacktestConfig is the immutable input of one backtest run.
type BacktestConfig struct {
	Symbol          string    `json:"symbol" yaml:"symbol"`
	StartDate       time.Time `json:"start_date" yaml:"start_date"`
	EndDate         time.Time `json:"end_date" yaml:"end_date"`
	InitialCapital  float64   `json:"initial_capital" yaml:"initial_capital"`
	BuyThreshold    float64   `json:"buy_threshold" yaml:"buy_threshold"`
	SellThreshold   float64   `json:"sell_threshold" yaml:"sell_threshold"`
	SentimentWeight float64   `json:"sentiment_weight" yaml:"sentiment_weight"`
	TechnicalWeight float64   `json:"technical_weight" yaml:"technical_weight"`

	// Seed feeds the HOLD confidence jitter; equal seeds give equal runs.
	Seed uint64 `json:"seed" yaml:"seed"`
	// CommissionRate is charged as a fraction of notional on every fill.
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	// AnnualizationFactor scales Sharpe, Sortino and volatility; 0 means 252.
	AnnualizationFactor float64 `json:"annualization_factor" yaml:"annualization_factor"`
	// CloseOpenPosition liquidates any position on the last bar. Off by
	// default: the final value is mark-to-market only.
	CloseOpenPosition bool `json:"close_open_position" yaml:"close_open_position"`
	// Lookback is the trailing bar window of the technical score; 0 means 60.
	Lookback int          `json:"lookback" yaml:"lookback"`
	Sizing   SizingConfig `json:"sizing" yaml:"sizing"`
}

// Params extracts the signal parameters.
func (c BacktestConfig) Params() SignalParams {
	return SignalParams{
		BuyThreshold:    c.BuyThreshold,
		SellThreshold:   c.SellThreshold,
		SentimentWeight: c.SentimentWeight,
		TechnicalWeight: c.TechnicalWeight,
	}
}

// Validate rejects configurations the engine must not run. It never corrects.
func (c BacktestConfig) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital %v must be positive", ErrConfiguration, c.InitialCapital)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if !(c.CommissionRate >= 0 && c.CommissionRate < 1) {
		return fmt.Errorf("%w: commission rate %v must be in [0,1)", ErrConfiguration, c.CommissionRate)
	}
	if !(c.AnnualizationFactor >= 0) || math.IsInf(c.AnnualizationFactor, 0) {
		return fmt.Errorf("%w: annualization factor %v must not be negative", ErrConfiguration, c.AnnualizationFactor)
	}
	if c.Lookback < 0 {
		return fmt.Errorf("%w: lookback %d must not be negative", ErrConfiguration, c.Lookback)
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrConfiguration,
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	return c.Sizing.Validate()
}

// BacktestResult is produced once per run and not mutated afterwards.
type BacktestResult struct {
	Config             BacktestConfig `json:"config"`
	FinalValue         float64        `json:"final_value"`
	TotalReturn        float64        `json:"total_return"`
	TotalReturnPercent float64        `json:"total_return_percent"`
	MaxDrawdown        float64        `json:"max_drawdown"`
	SharpeRatio        float64        `json:"sharpe_ratio"`
	Stats              Stats          `json:"stats"`
	Trades             []Fill         `json:"trades"`
	Equity             []EquityPoint  `json:"equity"`
	OpenPosition       Position       `json:"open_position"`
	Signals            SignalCounts   `json:"signals"`

	BuyAndHoldReturnPercent float64 `json:"buy_and_hold_return_percent"`
	Outperformance          float64 `json:"outperformance"`
}
