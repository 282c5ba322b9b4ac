package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentiment-trader/internal/types"
)

var fileZone = time.FixedZone("IST", 19800)

// Entry is one simulated fill as written to the daily journal.
type Entry struct {
	Time, RunID, Symbol, Side, Reason string
	BarTime                           string
	Qty                               int64
	Price, Fee, PnL, NetPnL           float64
}

// DecisionEntry is one signal decision as written to the decisions journal.
type DecisionEntry struct {
	Time, Symbol, Action, Reason string
	Confidence                   float64
	CombinedScore                float64
	Inputs                       map[string]float64
}

// Journal appends JSON lines under dir, one file per day.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) Dir() string { return j.dir }

// FillsPath is the fills journal that AppendFills writes at time t.
func (j *Journal) FillsPath(t time.Time) string {
	return j.dailyFilepath(t)
}

// Day is the journal date of t.
func Day(t time.Time) string {
	return t.In(fileZone).Format("2006-01-02")
}

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, Day(t)+".txt")
}

func (j *Journal) decisionsFilepath(t time.Time) string {
	return filepath.Join(j.dir, "decisions", Day(t)+".txt")
}

// AppendFills writes every fill of a run to today's journal.
func (j *Journal) AppendFills(runID, symbol string, fills []types.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	now := j.now().In(fileZone)
	stamp := now.Format("2006-01-02 15:04:05")
	lines := make([]any, len(fills))
	for i, f := range fills {
		lines[i] = Entry{
			Time:    stamp,
			RunID:   runID,
			Symbol:  symbol,
			Side:    string(f.Side),
			Reason:  f.Reason,
			BarTime: f.Time.Format(time.RFC3339),
			Qty:     f.Quantity,
			Price:   f.Price,
			Fee:     f.Fee,
			PnL:     f.PnL,
			NetPnL:  f.NetPnL,
		}
	}
	return j.appendLines(j.dailyFilepath(now), lines)
}

// AppendDecision writes one decision to today's decisions journal.
func (j *Journal) AppendDecision(symbol string, d types.SignalDecision, inputs map[string]float64) error {
	now := j.now().In(fileZone)
	e := DecisionEntry{
		Time:          now.Format("2006-01-02 15:04:05"),
		Symbol:        symbol,
		Action:        string(d.Action),
		Reason:        d.Rationale,
		Confidence:    d.Confidence,
		CombinedScore: d.CombinedScore,
		Inputs:        inputs,
	}
	return j.appendLines(j.decisionsFilepath(now), []any{e})
}

func (j *Journal) appendLines(p string, lines []any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, l := range lines {
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// CompressOlder gzips journal files not modified for retentionDays.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed on an earlier pass
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
