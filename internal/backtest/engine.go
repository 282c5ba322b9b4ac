package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/performance"
	"sentiment-trader/internal/signal"
	"sentiment-trader/internal/types"
)

const (
	reasonEndOfPeriod = "end of period liquidation"
	// seedStream is the second PCG word; runs differ only by Config.Seed.
	seedStream = 0x5eed5eed5eed5eed
)

// DeciderFactory builds the per-run decider from the run's seeded rng.
type DeciderFactory func(rng *rand.Rand) interfaces.Decider

// Engine replays price series bar by bar. It holds no per-run state, so one
// Engine may serve many concurrent Run calls.
type Engine struct {
	sizer      Sizer
	technical  interfaces.TechnicalScorer
	newDecider DeciderFactory
}

type Option func(*Engine)

// WithSizer overrides the sizer named by BacktestConfig.Sizing.
func WithSizer(s Sizer) Option {
	return func(e *Engine) { e.sizer = s }
}

// WithTechnicalScorer overrides the default indicator composite.
func WithTechnicalScorer(t interfaces.TechnicalScorer) Option {
	return func(e *Engine) { e.technical = t }
}

// WithDeciderFactory overrides the sentiment/technical signal generator.
func WithDeciderFactory(f DeciderFactory) Option {
	return func(e *Engine) { e.newDecider = f }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		newDecider: func(rng *rand.Rand) interfaces.Decider { return signal.NewGenerator(rng) },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var _ interfaces.Runner = (*Engine)(nil)

// run is the mutable account of a single Run call.
type run struct {
	cfg    types.BacktestConfig
	rate   decimal.Decimal
	cash   decimal.Decimal
	pos    types.Position
	fills  []types.Fill
	equity []types.EquityPoint
}

// Run validates cfg and bars, then simulates the decision policy over bars.
// Identical inputs give identical results.
func (e *Engine) Run(ctx context.Context, bars []types.PriceBar, cfg types.BacktestConfig) (*types.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	params := cfg.Params()
	if !params.WeightsNormalized() {
		logger.Warn(ctx, "Signal weights do not sum to 1",
			"symbol", cfg.Symbol,
			"sentiment_weight", params.SentimentWeight,
			"technical_weight", params.TechnicalWeight,
		)
	}

	sizer := e.sizer
	if sizer == nil {
		s, err := NewSizer(cfg.Sizing)
		if err != nil {
			return nil, err
		}
		sizer = s
	}
	technical := e.technical
	if technical == nil {
		technical = signal.NewTechnicalScorer(cfg.Lookback)
	}
	decider := e.newDecider(rand.New(rand.NewPCG(cfg.Seed, seedStream)))

	r := &run{
		cfg:    cfg,
		rate:   decimal.NewFromFloat(cfg.CommissionRate),
		cash:   decimal.NewFromFloat(cfg.InitialCapital),
		fills:  make([]types.Fill, 0),
		equity: make([]types.EquityPoint, 0, len(bars)),
	}
	var counts types.SignalCounts

	logger.Debug(ctx, "Backtest started", "symbol", cfg.Symbol, "bars", len(bars), "sizer", sizer.Name(), "seed", cfg.Seed)

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tech := technical.Score(bars[:i+1])
		d := decider.Decide(bar.Sentiment, tech, params)
		counts.Add(d.Action)
		logger.Decision(ctx, cfg.Symbol, string(d.Action), d.Confidence, d.Rationale,
			"bar", i, "sentiment", bar.Sentiment, "technical", tech, "combined", d.CombinedScore)

		switch d.Action {
		case types.ActionBuy:
			if r.pos.Quantity == 0 && bar.Close > 0 && r.cash.GreaterThanOrEqual(decimal.NewFromFloat(bar.Close)) {
				qty := sizer.Size(SizeInput{
					Cash:           r.cash.InexactFloat64(),
					Price:          bar.Close,
					CommissionRate: cfg.CommissionRate,
					Confidence:     d.Confidence,
					Bars:           bars[:i+1],
				})
				r.buy(ctx, bar, qty, d.Rationale)
			}
		case types.ActionSell:
			if r.pos.Quantity > 0 {
				r.sell(ctx, bar, d.Rationale)
			}
		}

		if i == len(bars)-1 && cfg.CloseOpenPosition && r.pos.Quantity > 0 {
			r.sell(ctx, bar, reasonEndOfPeriod)
		}

		r.mark(bar)
	}

	return r.result(bars, counts, performance.Analyzer{AnnualizationFactor: cfg.AnnualizationFactor}), nil
}

func (r *run) buy(ctx context.Context, bar types.PriceBar, qty int64, reason string) {
	price := decimal.NewFromFloat(bar.Close)
	qty = r.clampAffordable(price, qty)
	if qty <= 0 {
		logger.Debug(ctx, "BUY skipped, nothing affordable", "symbol", r.cfg.Symbol, "price", bar.Close, "cash", r.cash.InexactFloat64())
		return
	}

	cost := price.Mul(decimal.NewFromInt(qty))
	fee := cost.Mul(r.rate)
	r.cash = r.cash.Sub(cost).Sub(fee)
	r.pos = types.Position{Quantity: qty, AvgEntryPrice: bar.Close, EntryFee: fee.InexactFloat64()}

	f := types.Fill{
		Time:      bar.Timestamp,
		Side:      types.ActionBuy,
		Price:     bar.Close,
		Quantity:  qty,
		Fee:       fee.InexactFloat64(),
		CashAfter: r.cash.InexactFloat64(),
		Reason:    reason,
	}
	r.fills = append(r.fills, f)
	logger.Fill(ctx, r.cfg.Symbol, string(f.Side), f.Quantity, f.Price, "fee", f.Fee, "cash_after", f.CashAfter)
}

func (r *run) sell(ctx context.Context, bar types.PriceBar, reason string) {
	price := decimal.NewFromFloat(bar.Close)
	qty := decimal.NewFromInt(r.pos.Quantity)
	proceeds := price.Mul(qty)
	fee := proceeds.Mul(r.rate)
	r.cash = r.cash.Add(proceeds).Sub(fee)

	pnl := price.Sub(decimal.NewFromFloat(r.pos.AvgEntryPrice)).Mul(qty)
	net := pnl.Sub(decimal.NewFromFloat(r.pos.EntryFee)).Sub(fee)

	f := types.Fill{
		Time:      bar.Timestamp,
		Side:      types.ActionSell,
		Price:     bar.Close,
		Quantity:  r.pos.Quantity,
		Fee:       fee.InexactFloat64(),
		PnL:       pnl.InexactFloat64(),
		NetPnL:    net.InexactFloat64(),
		CashAfter: r.cash.InexactFloat64(),
		Reason:    reason,
	}
	r.fills = append(r.fills, f)
	r.pos = types.Position{}
	logger.Fill(ctx, r.cfg.Symbol, string(f.Side), f.Quantity, f.Price, "pnl", f.PnL, "net_pnl", f.NetPnL, "cash_after", f.CashAfter)
}

// clampAffordable caps qty so that cost plus commission never exceeds cash.
func (r *run) clampAffordable(price decimal.Decimal, qty int64) int64 {
	if qty <= 0 || !price.IsPositive() {
		return 0
	}
	unit := price.Mul(decimal.NewFromInt(1).Add(r.rate))
	maxQty := r.cash.Div(unit).Floor().IntPart()
	for maxQty > 0 && unit.Mul(decimal.NewFromInt(maxQty)).GreaterThan(r.cash) {
		maxQty--
	}
	if qty > maxQty {
		qty = maxQty
	}
	return qty
}

// mark records the equity point from the reported cash so that
// Cash + Quantity*Close equals Value exactly.
func (r *run) mark(bar types.PriceBar) {
	cash := r.cash.InexactFloat64()
	r.equity = append(r.equity, types.EquityPoint{
		Date:     bar.Timestamp,
		Value:    markValue(cash, r.pos.Quantity, bar.Close),
		Cash:     cash,
		Quantity: r.pos.Quantity,
		Close:    bar.Close,
	})
}

// markValue keeps the product rounded on its own so no platform fuses it
// into the addition.
func markValue(cash float64, qty int64, price float64) float64 {
	return cash + float64(float64(qty)*price)
}

func (r *run) result(bars []types.PriceBar, counts types.SignalCounts, a performance.Analyzer) *types.BacktestResult {
	stats := a.Analyze(r.equity, r.fills, r.cfg.InitialCapital)

	final := r.cfg.InitialCapital
	if len(r.equity) > 0 {
		final = r.equity[len(r.equity)-1].Value
	}

	bh := 0.0
	if len(bars) > 0 && bars[0].Close > 0 {
		bh = (bars[len(bars)-1].Close - bars[0].Close) / bars[0].Close * 100
	}

	return &types.BacktestResult{
		Config:                  r.cfg,
		FinalValue:              final,
		TotalReturn:             stats.TotalReturn,
		TotalReturnPercent:      stats.TotalReturnPercent,
		MaxDrawdown:             stats.MaxDrawdown,
		SharpeRatio:             stats.SharpeRatio,
		Stats:                   stats,
		Trades:                  r.fills,
		Equity:                  r.equity,
		OpenPosition:            r.pos,
		Signals:                 counts,
		BuyAndHoldReturnPercent: bh,
		Outperformance:          stats.TotalReturnPercent - bh,
	}
}

// ValidateSeries enforces the provider contract: strictly increasing
// timestamps, finite non-negative prices, non-negative volume and
// sentiment in [-1,1]. An empty series is valid.
func ValidateSeries(bars []types.PriceBar) error {
	for i, b := range bars {
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp %s not after %s", types.ErrData, i,
				b.Timestamp.Format("2006-01-02T15:04:05Z07:00"), bars[i-1].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
		for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
				return fmt.Errorf("%w: bar %d has invalid price %v", types.ErrData, i, p)
			}
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d has negative volume %d", types.ErrData, i, b.Volume)
		}
		if math.IsNaN(b.Sentiment) || b.Sentiment < -1 || b.Sentiment > 1 {
			return fmt.Errorf("%w: bar %d sentiment %v outside [-1,1]", types.ErrData, i, b.Sentiment)
		}
	}
	return nil
}
