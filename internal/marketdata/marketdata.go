package marketdata

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"sentiment-trader/internal/sentiment"
	"sentiment-trader/internal/types"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// csvTime accepts dates and RFC3339 timestamps.
type csvTime struct {
	time.Time
}

func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t csvTime) MarshalCSV() (string, error) {
	return t.UTC().Format(time.RFC3339), nil
}

// priceRow is one line of a price CSV. The sentiment column is optional.
type priceRow struct {
	Date      csvTime `csv:"date"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
	Sentiment float64 `csv:"sentiment"`
}

// LoadCSV reads OHLCV rows (date,open,high,low,close,volume[,sentiment])
// and returns them oldest first. Duplicate timestamps are kept so the
// engine can reject them.
func LoadCSV(r io.Reader) ([]types.PriceBar, error) {
	var rows []*priceRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("%w: parse price csv: %v", types.ErrData, err)
	}
	bars := make([]types.PriceBar, len(rows))
	for i, row := range rows {
		bars[i] = types.PriceBar{
			Timestamp: row.Date.Time,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
			Sentiment: row.Sentiment,
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func LoadFile(path string) ([]types.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// WriteCSV writes bars in the format LoadCSV reads.
func WriteCSV(w io.Writer, bars []types.PriceBar) error {
	rows := make([]*priceRow, len(bars))
	for i, b := range bars {
		rows[i] = &priceRow{
			Date:      csvTime{b.Timestamp},
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Sentiment: b.Sentiment,
		}
	}
	return gocsv.Marshal(&rows, w)
}

// Filter keeps bars within [start, end]. A zero bound is open.
func Filter(bars []types.PriceBar, start, end time.Time) []types.PriceBar {
	out := make([]types.PriceBar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(endOfDay(end)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// endOfDay widens a date-only bound so bars later that day are kept.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

// ApplySentiment returns a copy of bars whose Sentiment is taken from daily,
// keyed by sentiment.DayKey. Days without a score keep their value.
func ApplySentiment(bars []types.PriceBar, daily map[string]float64) []types.PriceBar {
	out := make([]types.PriceBar, len(bars))
	copy(out, bars)
	for i := range out {
		if s, ok := daily[sentiment.DayKey(out[i].Timestamp)]; ok {
			out[i].Sentiment = max(-1, min(1, s))
		}
	}
	return out
}
