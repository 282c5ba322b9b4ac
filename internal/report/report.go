package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"sentiment-trader/internal/types"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

type tradeRow struct {
	Time      string  `csv:"time"`
	Side      string  `csv:"side"`
	Price     float64 `csv:"price"`
	Quantity  int64   `csv:"quantity"`
	Fee       float64 `csv:"fee"`
	PnL       float64 `csv:"pnl"`
	NetPnL    float64 `csv:"net_pnl"`
	CashAfter float64 `csv:"cash_after"`
	Reason    string  `csv:"reason"`
}

type equityRow struct {
	Date     string  `csv:"date"`
	Value    float64 `csv:"value"`
	Cash     float64 `csv:"cash"`
	Quantity int64   `csv:"quantity"`
	Close    float64 `csv:"close"`
}

type metricRow struct {
	Metric string `csv:"metric"`
	Value  string `csv:"value"`
}

// Paths are the files written for one run.
type Paths struct {
	Trades  string `json:"trades"`
	Equity  string `json:"equity"`
	Summary string `json:"summary"`
}

// Writer writes per-run CSV reports under dir/<run id>/.
type Writer struct {
	dir string
}

func New(dir string) *Writer {
	if dir == "" {
		dir = "reports"
	}
	return &Writer{dir: dir}
}

// Write writes trades.csv, equity.csv and summary.csv for res.
func (w *Writer) Write(runID string, res *types.BacktestResult) (Paths, error) {
	if runID == "" {
		return Paths{}, fmt.Errorf("%w: report needs a run id", types.ErrConfiguration)
	}
	dir := filepath.Join(w.dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, err
	}
	p := Paths{
		Trades:  filepath.Join(dir, "trades.csv"),
		Equity:  filepath.Join(dir, "equity.csv"),
		Summary: filepath.Join(dir, "summary.csv"),
	}
	if err := writeFile(p.Trades, func(f io.Writer) error { return WriteTrades(f, res.Trades) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(p.Equity, func(f io.Writer) error { return WriteEquity(f, res.Equity) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(p.Summary, func(f io.Writer) error { return WriteSummary(f, res) }); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func WriteTrades(w io.Writer, fills []types.Fill) error {
	rows := make([]tradeRow, len(fills))
	for i, f := range fills {
		rows[i] = tradeRow{
			Time:      f.Time.Format(timeLayout),
			Side:      string(f.Side),
			Price:     f.Price,
			Quantity:  f.Quantity,
			Fee:       f.Fee,
			PnL:       f.PnL,
			NetPnL:    f.NetPnL,
			CashAfter: f.CashAfter,
			Reason:    f.Reason,
		}
	}
	return gocsv.Marshal(&rows, w)
}

func WriteEquity(w io.Writer, equity []types.EquityPoint) error {
	rows := make([]equityRow, len(equity))
	for i, e := range equity {
		rows[i] = equityRow{
			Date:     e.Date.Format(timeLayout),
			Value:    e.Value,
			Cash:     e.Cash,
			Quantity: e.Quantity,
			Close:    e.Close,
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteSummary writes the headline figures of res as metric,value rows.
func WriteSummary(w io.Writer, res *types.BacktestResult) error {
	s := res.Stats
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	rows := []metricRow{
		{"symbol", res.Config.Symbol},
		{"initial_capital", num(res.Config.InitialCapital)},
		{"final_value", num(res.FinalValue)},
		{"total_return", num(res.TotalReturn)},
		{"total_return_percent", num(res.TotalReturnPercent)},
		{"buy_and_hold_return_percent", num(res.BuyAndHoldReturnPercent)},
		{"outperformance", num(res.Outperformance)},
		{"max_drawdown", num(res.MaxDrawdown)},
		{"sharpe_ratio", num(res.SharpeRatio)},
		{"sortino_ratio", num(s.SortinoRatio)},
		{"volatility", num(s.Volatility)},
		{"var_95", num(s.VaR95)},
		{"closed_trades", strconv.Itoa(s.ClosedTrades)},
		{"win_rate", num(s.WinRate)},
		{"profit_factor", num(s.ProfitFactor)},
		{"avg_win", num(s.AvgWin)},
		{"avg_loss", num(s.AvgLoss)},
		{"largest_win", num(s.LargestWin)},
		{"largest_loss", num(s.LargestLoss)},
		{"max_consecutive_wins", strconv.Itoa(s.MaxConsecutiveWins)},
		{"max_consecutive_losses", strconv.Itoa(s.MaxConsecutiveLosses)},
		{"signals_buy", strconv.Itoa(res.Signals.Buy)},
		{"signals_sell", strconv.Itoa(res.Signals.Sell)},
		{"signals_hold", strconv.Itoa(res.Signals.Hold)},
		{"open_quantity", strconv.FormatInt(res.OpenPosition.Quantity, 10)},
	}
	return gocsv.Marshal(&rows, w)
}
