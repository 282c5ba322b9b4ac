package marketdata

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"sentiment-trader/internal/types"
)

const sampleCSV = `date,open,high,low,close,volume,sentiment
2024-01-03,101,103,100,102,1200,0.4
2024-01-02,100,102,99,101,1000,-0.2
2024-01-04T00:00:00Z,102,104,101,103,900,0
`

func TestLoadCSVSortsOldestFirst(t *testing.T) {
	bars, err := LoadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bars[0].Timestamp.Equal(want) {
		t.Errorf("first bar at %v, want %v", bars[0].Timestamp, want)
	}
	if bars[0].Close != 101 || bars[0].Volume != 1000 || bars[0].Sentiment != -0.2 {
		t.Errorf("first bar = %+v", bars[0])
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Errorf("bars not increasing at %d", i)
		}
	}
}

func TestLoadCSVWithoutSentimentColumn(t *testing.T) {
	bars, err := LoadCSV(strings.NewReader("date,open,high,low,close,volume\n2024-01-02,1,2,0.5,1.5,10\n"))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(bars) != 1 || bars[0].Sentiment != 0 || bars[0].Close != 1.5 {
		t.Errorf("bars = %+v", bars)
	}
}

func TestLoadCSVBadDate(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("date,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"))
	if !errors.Is(err, types.ErrData) {
		t.Errorf("err = %v, want ErrData", err)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	bars, err := LoadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, bars); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	again, err := LoadCSV(&buf)
	if err != nil {
		t.Fatalf("LoadCSV again: %v", err)
	}
	for i := range bars {
		if !again[i].Timestamp.Equal(bars[i].Timestamp) || again[i].Close != bars[i].Close || again[i].Sentiment != bars[i].Sentiment {
			t.Errorf("bar %d: %+v != %+v", i, again[i], bars[i])
		}
	}
}

func TestFilter(t *testing.T) {
	bars, _ := LoadCSV(strings.NewReader(sampleCSV))
	got := Filter(bars, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].Close != 102 {
		t.Errorf("Filter = %+v, want the 2024-01-03 bar", got)
	}
	if got := Filter(bars, time.Time{}, time.Time{}); len(got) != 3 {
		t.Errorf("open filter kept %d bars, want 3", len(got))
	}
}

func TestApplySentiment(t *testing.T) {
	bars, _ := LoadCSV(strings.NewReader(sampleCSV))
	out := ApplySentiment(bars, map[string]float64{"2024-01-02": 0.9, "2024-01-04": -3})

	if out[0].Sentiment != 0.9 {
		t.Errorf("day 1 sentiment = %v, want 0.9", out[0].Sentiment)
	}
	if out[1].Sentiment != 0.4 {
		t.Errorf("day 2 sentiment = %v, want unchanged 0.4", out[1].Sentiment)
	}
	if out[2].Sentiment != -1 {
		t.Errorf("day 3 sentiment = %v, want clamped -1", out[2].Sentiment)
	}
	if bars[0].Sentiment != -0.2 {
		t.Error("ApplySentiment must not mutate its input")
	}
}
