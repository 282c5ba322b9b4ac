package interfaces

import "sentiment-trader/internal/types"

// Decider turns sentiment and technical scores into a trade decision.
type Decider interface {
	Decide(sentiment, technical float64, p types.SignalParams) types.SignalDecision
}

// TechnicalScorer scores the last bar of a trailing window in [-1,1].
type TechnicalScorer interface {
	Score(bars []types.PriceBar) float64
}

// SentimentAnalyzer maps text to a bounded sentiment result.
type SentimentAnalyzer interface {
	Analyze(text string) types.SentimentResult
}
