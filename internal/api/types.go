package api

import "sentiment-trader/internal/types"

// BacktestRequest runs one backtest over the supplied bars. Config fields
// left out of the JSON keep the server's configured defaults.
type BacktestRequest struct {
	Config types.BacktestConfig `json:"config"`
	Bars   []types.PriceBar     `json:"bars"`
	// Save persists the run and its fills when the server has storage.
	Save bool `json:"save"`
}

type BacktestResponse struct {
	RunID  string                `json:"run_id,omitempty"`
	Result *types.BacktestResult `json:"result"`
}

// SweepRequest runs Configs, or the grid built from Base and the threshold
// and weight lists when Configs is empty.
type SweepRequest struct {
	Base             types.BacktestConfig   `json:"base"`
	Configs          []types.BacktestConfig `json:"configs,omitempty"`
	BuyThresholds    []float64              `json:"buy_thresholds,omitempty"`
	SellThresholds   []float64              `json:"sell_thresholds,omitempty"`
	SentimentWeights []float64              `json:"sentiment_weights,omitempty"`
	Bars             []types.PriceBar       `json:"bars"`
	Workers          int                    `json:"workers,omitempty"`
}

type SweepResponse struct {
	Results []*types.BacktestResult `json:"results"`
}

// SignalRequest asks for a single decision. A nil Technical means
// sentiment only; nil Params uses the server defaults.
type SignalRequest struct {
	Symbol    string              `json:"symbol,omitempty"`
	Sentiment float64             `json:"sentiment"`
	Technical *float64            `json:"technical,omitempty"`
	Params    *types.SignalParams `json:"params,omitempty"`
	Seed      uint64              `json:"seed,omitempty"`
}

type SignalResponse struct {
	Decision types.SignalDecision `json:"decision"`
	Params   types.SignalParams   `json:"params"`
}

// SentimentRequest scores Texts or Headlines when given, otherwise fetches
// the symbol's recent headlines.
type SentimentRequest struct {
	Symbol    string           `json:"symbol"`
	Texts     []string         `json:"texts,omitempty"`
	Headlines []types.Headline `json:"headlines,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage bool   `json:"storage"`
	News    bool   `json:"news"`
}
