package storage

import (
	"time"

	"sentiment-trader/internal/types"
)

// Run is one persisted backtest. The full config and stats are kept as JSON;
// the columns filters and listings need are duplicated alongside.
type Run struct {
	ID                      string       `gorm:"primaryKey;size:36" json:"id"`
	Symbol                  string       `gorm:"index:idx_symbol_time;size:50" json:"symbol"`
	InitialCapital          float64      `json:"initial_capital"`
	FinalValue              float64      `json:"final_value"`
	TotalReturnPercent      float64      `json:"total_return_percent"`
	MaxDrawdown             float64      `json:"max_drawdown"`
	SharpeRatio             float64      `json:"sharpe_ratio"`
	BuyAndHoldReturnPercent float64      `json:"buy_and_hold_return_percent"`
	ClosedTrades            int          `json:"closed_trades"`
	ConfigJSON              string       `gorm:"type:text" json:"-"`
	StatsJSON               string       `gorm:"type:text" json:"-"`
	CreatedAt               time.Time    `gorm:"index:idx_symbol_time" json:"created_at"`
	Fills                   []FillRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"-"`
}

// FillRecord is one simulated fill of a persisted run.
type FillRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string    `gorm:"index:idx_run_seq;size:36" json:"run_id"`
	Seq       int       `gorm:"index:idx_run_seq" json:"seq"`
	Time      time.Time `json:"time"`
	Side      string    `gorm:"size:10" json:"side"` // BUY, SELL
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Fee       float64   `json:"fee"`
	PnL       float64   `json:"pnl"`
	NetPnL    float64   `json:"net_pnl"`
	CashAfter float64   `json:"cash_after"`
	Reason    string    `gorm:"size:200" json:"reason"`
}

func (f FillRecord) toFill() types.Fill {
	return types.Fill{
		Time:      f.Time,
		Side:      types.Action(f.Side),
		Price:     f.Price,
		Quantity:  f.Quantity,
		Fee:       f.Fee,
		PnL:       f.PnL,
		NetPnL:    f.NetPnL,
		CashAfter: f.CashAfter,
		Reason:    f.Reason,
	}
}

// RunFilter narrows ListRuns. Zero values mean no constraint.
type RunFilter struct {
	Symbol string
	Since  *time.Time
	Limit  int
	Offset int
}
