package sentiment

import (
	"math"
	"sort"
	"strings"
	"time"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/types"
)

// Random is the injected randomness source. *math/rand/v2.Rand satisfies it.
type Random interface {
	Float64() float64
}

const (
	// NoiseAmplitude bounds the uniform jitter added to every non-empty score.
	NoiseAmplitude  = 0.15
	labelThreshold  = 0.2
	minConfidence   = 0.2
	confidenceScale = 0.8
)

// Scorer is a keyword-count sentiment heuristic. It stands in for a real
// model; callers rely only on the bounded score, label and confidence.
//
// A Scorer is not safe for concurrent use because its Random is not.
type Scorer struct {
	rng           Random
	positiveWords []string
	negativeWords []string
}

var _ interfaces.SentimentAnalyzer = (*Scorer)(nil)

// NewScorer creates a scorer with the default financial keyword lists.
// A nil rng disables the noise term.
func NewScorer(rng Random) *Scorer {
	return &Scorer{
		rng:           rng,
		positiveWords: defaultPositiveWords(),
		negativeWords: defaultNegativeWords(),
	}
}

// NewScorerWithWords creates a scorer with caller-supplied keyword substrings.
func NewScorerWithWords(rng Random, positive, negative []string) *Scorer {
	return &Scorer{
		rng:           rng,
		positiveWords: lowerAll(positive),
		negativeWords: lowerAll(negative),
	}
}

// Analyze maps text to a SentimentResult. Empty text yields a neutral zero score.
func (s *Scorer) Analyze(text string) types.SentimentResult {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return types.SentimentResult{Score: 0, Label: types.LabelNeutral, Confidence: minConfidence}
	}

	raw, matches := 0.0, 0
	for _, tok := range tokens {
		// A token may count on both sides.
		if containsAny(tok, s.positiveWords) {
			raw++
			matches++
		}
		if containsAny(tok, s.negativeWords) {
			raw--
			matches++
		}
	}

	normalized := 0.0
	if matches > 0 {
		normalized = clamp(raw/float64(matches), -1, 1)
	}

	final := clamp(normalized+s.noise(), -1, 1)
	return types.SentimentResult{
		Score:      final,
		Label:      LabelFor(final),
		Confidence: clamp(math.Abs(final), 0, 1)*confidenceScale + minConfidence,
	}
}

func (s *Scorer) noise() float64 {
	if s.rng == nil {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * NoiseAmplitude
}

// LabelFor maps a score to its label with a ±0.2 neutral band.
func LabelFor(score float64) types.SentimentLabel {
	switch {
	case score > labelThreshold:
		return types.LabelPositive
	case score < -labelThreshold:
		return types.LabelNegative
	default:
		return types.LabelNeutral
	}
}

// Aggregate combines per-headline results, newest first, into one score.
// Each result is weighted by its confidence and by 1/(i+1) for recency.
func Aggregate(results []types.SentimentResult) float64 {
	if len(results) == 0 {
		return 0
	}
	weighted, total := 0.0, 0.0
	for i, r := range results {
		w := 1.0 / float64(i+1)
		weighted += r.Score * r.Confidence * w
		total += w
	}
	return clamp(weighted/total, -1, 1)
}

// ScoreDaily scores headlines and aggregates them per UTC calendar day.
// Within a day, newer headlines weigh more.
func ScoreDaily(s *Scorer, headlines []types.Headline) map[string]float64 {
	byDay := map[string][]types.Headline{}
	for _, h := range headlines {
		key := DayKey(h.PublishedAt)
		byDay[key] = append(byDay[key], h)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make(map[string]float64, len(byDay))
	for _, day := range days {
		hs := byDay[day]
		sortNewestFirst(hs)
		results := make([]types.SentimentResult, len(hs))
		for i, h := range hs {
			results[i] = s.Analyze(h.Text())
		}
		out[day] = Aggregate(results)
	}
	return out
}

// DayKey is the map key used for daily sentiment lookups.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func sortNewestFirst(hs []types.Headline) {
	for i := 1; i < len(hs); i++ {
		for j := i; j > 0 && hs[j].PublishedAt.After(hs[j-1].PublishedAt); j-- {
			hs[j], hs[j-1] = hs[j-1], hs[j]
		}
	}
}

func containsAny(tok string, words []string) bool {
	for _, w := range words {
		if strings.Contains(tok, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func lowerAll(ws []string) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func defaultPositiveWords() []string {
	return []string{
		"gain", "growth", "profit", "surge", "rally", "beat", "upgrade",
		"strong", "record", "bullish", "outperform", "expand", "boost",
		"rise", "soar", "positive", "optimis", "buy",
	}
}

func defaultNegativeWords() []string {
	return []string{
		"loss", "decline", "fall", "drop", "plunge", "miss", "downgrade",
		"weak", "lawsuit", "fraud", "crash", "bearish", "underperform",
		"slump", "negative", "concern", "sell", "risk",
	}
}
