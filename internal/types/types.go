package types

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNegative SentimentLabel = "negative"
	LabelNeutral  SentimentLabel = "neutral"
)

// SentimentResult is the bounded output of a sentiment scorer.
type SentimentResult struct {
	Score      float64        `json:"score"`
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}

// PriceBar is one OHLCV bar with the sentiment observed for that period.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Sentiment float64   `json:"sentiment"`
}

// Headline is a piece of news text handed to the sentiment scorer.
type Headline struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Text joins the title and summary the way the scorer expects them.
func (h Headline) Text() string {
	if h.Summary == "" {
		return h.Title
	}
	return h.Title + ". " + h.Summary
}

// SignalParams are the decision boundaries and blend weights for a signal.
type SignalParams struct {
	BuyThreshold    float64 `json:"buy_threshold" yaml:"buy_threshold"`
	SellThreshold   float64 `json:"sell_threshold" yaml:"sell_threshold"`
	SentimentWeight float64 `json:"sentiment_weight" yaml:"sentiment_weight"`
	TechnicalWeight float64 `json:"technical_weight" yaml:"technical_weight"`
}

type SignalDecision struct {
	Action        Action  `json:"action"`
	Confidence    float64 `json:"confidence"`
	CombinedScore float64 `json:"combined_score"`
	Rationale     string  `json:"rationale"`
}

// Fill is a simulated execution recorded during a backtest.
// PnL and NetPnL are only set on SELL fills.
type Fill struct {
	Time      time.Time `json:"time"`
	Side      Action    `json:"side"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Fee       float64   `json:"fee"`
	PnL       float64   `json:"pnl"`
	NetPnL    float64   `json:"net_pnl"`
	CashAfter float64   `json:"cash_after"`
	Reason    string    `json:"reason"`
}

// Closed reports whether the fill closes a round trip.
func (f Fill) Closed() bool { return f.Side == ActionSell }

// EquityPoint is the marked-to-market account value after one bar.
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Cash     float64   `json:"cash"`
	Quantity int64     `json:"quantity"`
	Close    float64   `json:"close"`
}

// Position is the simulated holding of a single backtest run.
type Position struct {
	Quantity      int64   `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	EntryFee      float64 `json:"entry_fee"`
}

// Stats are the aggregate performance figures of an equity curve and its fills.
// Undefined ratios are reported as 0.
type Stats struct {
	TotalReturn          float64 `json:"total_return"`
	TotalReturnPercent   float64 `json:"total_return_percent"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	Volatility           float64 `json:"volatility"`
	VaR95                float64 `json:"var_95"`
	ClosedTrades         int     `json:"closed_trades"`
	WinRate              float64 `json:"win_rate"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	// ProfitFactor is gross wins over gross losses. It is 0 when there are no
	// losing trades, including an all-winning ledger.
	ProfitFactor         float64 `json:"profit_factor"`
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// SignalCounts is the distribution of decisions produced during a run.
type SignalCounts struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
	Hold int `json:"hold"`
}

func (c *SignalCounts) Add(a Action) {
	switch a {
	case ActionBuy:
		c.Buy++
	case ActionSell:
		c.Sell++
	default:
		c.Hold++
	}
}

// ScoredHeadline pairs a headline with the scorer's verdict on it.
type ScoredHeadline struct {
	Headline
	Result SentimentResult `json:"result"`
}

// NewsSentiment is the aggregated sentiment of a symbol's recent headlines.
type NewsSentiment struct {
	Symbol    string           `json:"symbol"`
	Score     float64          `json:"score"`
	Label     SentimentLabel   `json:"label"`
	Headlines []ScoredHeadline `json:"headlines"`
	Summary   string           `json:"summary,omitempty"`
	FetchedAt time.Time        `json:"fetched_at"`
}
