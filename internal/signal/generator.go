package signal

import (
	"fmt"
	"math"

	"sentiment-trader/internal/types"
)

// Random is the injected randomness source for HOLD confidence jitter.
type Random interface {
	Float64() float64
}

const (
	baseConfidence = 0.6
	maxConfidence  = 0.95
	holdBase       = 0.5
	holdJitter     = 0.3
)

// Generator turns a sentiment score and a technical score into a decision.
// Decide has no memory between calls; only the rng advances.
type Generator struct {
	rng Random
}

// NewGenerator creates a generator. A nil rng makes HOLD confidence a flat 0.5.
func NewGenerator(rng Random) *Generator {
	return &Generator{rng: rng}
}

// DecideSentiment is Decide with a technical score of 0.
func (g *Generator) DecideSentiment(sentiment float64, p types.SignalParams) types.SignalDecision {
	return g.Decide(sentiment, 0, p)
}

// Decide blends both scores with the configured weights and compares the
// result against inclusive buy and sell thresholds.
func (g *Generator) Decide(sentiment, technical float64, p types.SignalParams) types.SignalDecision {
	combined := sentiment*p.SentimentWeight + technical*p.TechnicalWeight

	switch {
	case combined >= p.BuyThreshold:
		return types.SignalDecision{
			Action:        types.ActionBuy,
			Confidence:    directionalConfidence(combined),
			CombinedScore: combined,
			Rationale: fmt.Sprintf("Positive sentiment (%.2f) and technicals (%.2f) give combined score %.3f at or above buy threshold %.2f",
				sentiment, technical, combined, p.BuyThreshold),
		}
	case combined <= p.SellThreshold:
		return types.SignalDecision{
			Action:        types.ActionSell,
			Confidence:    directionalConfidence(combined),
			CombinedScore: combined,
			Rationale: fmt.Sprintf("Negative sentiment (%.2f) and technicals (%.2f) give combined score %.3f at or below sell threshold %.2f",
				sentiment, technical, combined, p.SellThreshold),
		}
	default:
		return types.SignalDecision{
			Action:        types.ActionHold,
			Confidence:    g.holdConfidence(),
			CombinedScore: combined,
			Rationale: fmt.Sprintf("Combined score %.3f is inside the hold band (%.2f, %.2f)",
				combined, p.SellThreshold, p.BuyThreshold),
		}
	}
}

func directionalConfidence(combined float64) float64 {
	return math.Min(maxConfidence, baseConfidence+math.Abs(combined))
}

func (g *Generator) holdConfidence() float64 {
	if g.rng == nil {
		return holdBase
	}
	return holdBase + g.rng.Float64()*holdJitter
}
