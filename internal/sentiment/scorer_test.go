package sentiment

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"sentiment-trader/internal/types"
)

// fixedRandom returns the same draw every time; 0.5 maps to zero noise.
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func TestAnalyzeEmptyText(t *testing.T) {
	s := NewScorer(rand.New(rand.NewPCG(1, 2)))
	for _, text := range []string{"", "   ", "\n\t"} {
		got := s.Analyze(text)
		if got.Score != 0 || got.Label != types.LabelNeutral {
			t.Errorf("Analyze(%q) = %+v, want neutral zero", text, got)
		}
		if got.Confidence != 0.2 {
			t.Errorf("Analyze(%q).Confidence = %v, want 0.2", text, got.Confidence)
		}
	}
}

func TestAnalyzeKeywordHeuristic(t *testing.T) {
	s := NewScorer(fixedRandom(0.5))

	tests := []struct {
		name      string
		text      string
		wantScore float64
		wantLabel types.SentimentLabel
	}{
		{"all positive", "Strong PROFIT growth reported", 1, types.LabelPositive},
		{"all negative", "Shares fall after fraud lawsuit", -1, types.LabelNegative},
		{"balanced", "profit decline", 0, types.LabelNeutral},
		{"no keywords", "the company held its meeting", 0, types.LabelNeutral},
		{"token on both sides", "profitloss", 0, types.LabelNeutral},
		{"two to one", "gains offset by concerns and growth", 1.0 / 3.0, types.LabelPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Analyze(tt.text)
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("label = %v, want %v", got.Label, tt.wantLabel)
			}
			wantConf := math.Abs(tt.wantScore)*0.8 + 0.2
			if math.Abs(got.Confidence-wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got.Confidence, wantConf)
			}
		})
	}
}

func TestAnalyzeNoiseIsBounded(t *testing.T) {
	low := NewScorer(fixedRandom(0)).Analyze("quarterly meeting")
	if math.Abs(low.Score+NoiseAmplitude) > 1e-9 {
		t.Errorf("min noise score = %v, want %v", low.Score, -NoiseAmplitude)
	}
	if low.Label != types.LabelNeutral {
		t.Errorf("noise alone must not change the label, got %v", low.Label)
	}

	high := NewScorer(fixedRandom(0.999999)).Analyze("record profit")
	if high.Score != 1 {
		t.Errorf("score should clamp at 1, got %v", high.Score)
	}
}

func TestAnalyzeStaysInBounds(t *testing.T) {
	s := NewScorer(rand.New(rand.NewPCG(7, 11)))
	texts := []string{
		"surge rally boost", "crash plunge slump", "mixed gain and loss",
		"nothing to see", "upgrade downgrade", "risk", "buy buy buy",
	}
	for i := 0; i < 500; i++ {
		r := s.Analyze(texts[i%len(texts)])
		if r.Score < -1 || r.Score > 1 {
			t.Fatalf("score %v out of [-1,1]", r.Score)
		}
		if r.Confidence < 0.2 || r.Confidence > 1 {
			t.Fatalf("confidence %v out of [0.2,1]", r.Confidence)
		}
	}
}

func TestAnalyzeDeterministicWithSeed(t *testing.T) {
	a := NewScorer(rand.New(rand.NewPCG(42, 42)))
	b := NewScorer(rand.New(rand.NewPCG(42, 42)))
	for _, text := range []string{"profit warning", "strong quarter", "flat day", "loss widens"} {
		ra, rb := a.Analyze(text), b.Analyze(text)
		if ra != rb {
			t.Errorf("Analyze(%q) differs across equal seeds: %+v vs %+v", text, ra, rb)
		}
	}
}

func TestAggregateRecencyWeighting(t *testing.T) {
	if got := Aggregate(nil); got != 0 {
		t.Errorf("Aggregate(nil) = %v, want 0", got)
	}

	results := []types.SentimentResult{
		{Score: 1, Confidence: 1},
		{Score: -1, Confidence: 1},
	}
	// (1*1 - 1*0.5) / 1.5
	want := 0.5 / 1.5
	if got := Aggregate(results); math.Abs(got-want) > 1e-9 {
		t.Errorf("Aggregate = %v, want %v", got, want)
	}
}

func TestScoreDaily(t *testing.T) {
	s := NewScorer(fixedRandom(0.5))
	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	daily := ScoreDaily(s, []types.Headline{
		{Title: "record profit", PublishedAt: day1},
		{Title: "shares plunge", PublishedAt: day2},
		{Title: "quiet session", PublishedAt: day2.Add(-time.Hour)},
	})

	if len(daily) != 2 {
		t.Fatalf("got %d days, want 2", len(daily))
	}
	if got := daily["2024-03-01"]; got != 1 {
		t.Errorf("day1 = %v, want 1", got)
	}
	// newest (plunge: -1, conf 1) weight 1; older (0, conf 0.2) weight 0.5
	want := -1.0 / 1.5
	if got := daily["2024-03-02"]; math.Abs(got-want) > 1e-9 {
		t.Errorf("day2 = %v, want %v", got, want)
	}
}
