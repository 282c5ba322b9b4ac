package backtest

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/performance"
	"sentiment-trader/internal/types"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(i int, close, sentiment float64) types.PriceBar {
	return types.PriceBar{
		Timestamp: day0.AddDate(0, 0, i),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1000,
		Sentiment: sentiment,
	}
}

func baseConfig() types.BacktestConfig {
	return types.BacktestConfig{
		Symbol:          "TEST",
		InitialCapital:  10000,
		BuyThreshold:    0.5,
		SellThreshold:   -0.5,
		SentimentWeight: 1,
		TechnicalWeight: 0,
		Seed:            7,
	}
}

// scripted replays a fixed action sequence, HOLD once exhausted.
type scripted struct {
	actions []types.Action
	i       int
}

func (s *scripted) Decide(_, _ float64, _ types.SignalParams) types.SignalDecision {
	a := types.ActionHold
	if s.i < len(s.actions) {
		a = s.actions[s.i]
	}
	s.i++
	return types.SignalDecision{Action: a, Confidence: 0.9, Rationale: "scripted"}
}

func script(actions ...types.Action) Option {
	return WithDeciderFactory(func(*rand.Rand) interfaces.Decider {
		return &scripted{actions: append([]types.Action(nil), actions...)}
	})
}

func TestRunAllInRoundTrip(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0.8), bar(1, 105, 0), bar(2, 110, -0.8)}

	res, err := New().Run(context.Background(), bars, baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2: %+v", len(res.Trades), res.Trades)
	}
	buy, sell := res.Trades[0], res.Trades[1]
	if buy.Side != types.ActionBuy || buy.Quantity != 100 || buy.Price != 100 {
		t.Errorf("buy fill = %+v, want 100 @ 100", buy)
	}
	if sell.Side != types.ActionSell || sell.PnL != 1000 || sell.NetPnL != 1000 {
		t.Errorf("sell fill = %+v, want pnl 1000", sell)
	}
	if sell.CashAfter != 11000 {
		t.Errorf("cash after sell = %v, want 11000", sell.CashAfter)
	}

	wantEquity := []float64{10000, 10500, 11000}
	for i, p := range res.Equity {
		if p.Value != wantEquity[i] {
			t.Errorf("equity[%d] = %v, want %v", i, p.Value, wantEquity[i])
		}
	}
	if res.FinalValue != 11000 || res.TotalReturn != 1000 || res.TotalReturnPercent != 10 {
		t.Errorf("final %v return %v (%v%%), want 11000 / 1000 / 10%%", res.FinalValue, res.TotalReturn, res.TotalReturnPercent)
	}
	if res.Stats.WinRate != 100 || res.Stats.ClosedTrades != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.BuyAndHoldReturnPercent != 10 || res.Outperformance != 0 {
		t.Errorf("benchmark = %v, outperformance = %v", res.BuyAndHoldReturnPercent, res.Outperformance)
	}
	if res.Signals != (types.SignalCounts{Buy: 1, Hold: 1, Sell: 1}) {
		t.Errorf("signals = %+v", res.Signals)
	}
	if res.OpenPosition.Quantity != 0 {
		t.Errorf("open position = %+v, want flat", res.OpenPosition)
	}
}

func TestRunZeroTradeScenario(t *testing.T) {
	bars := make([]types.PriceBar, 40)
	for i := range bars {
		bars[i] = bar(i, 100+float64(i%5), 0)
	}
	cfg := baseConfig()
	cfg.SentimentWeight, cfg.TechnicalWeight = 0.7, 0.3

	res, err := New().Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %+v, want none", res.Trades)
	}
	if res.Trades == nil {
		t.Error("trades should be an empty slice, not nil")
	}
	if res.TotalReturn != 0 || res.Stats.WinRate != 0 {
		t.Errorf("return %v winRate %v, want 0", res.TotalReturn, res.Stats.WinRate)
	}
	if res.SharpeRatio != 0 || math.IsNaN(res.SharpeRatio) {
		t.Errorf("sharpe = %v, want sentinel 0", res.SharpeRatio)
	}
	if len(res.Equity) != len(bars) {
		t.Errorf("equity length = %d, want %d", len(res.Equity), len(bars))
	}
	if res.Signals.Hold != len(bars) {
		t.Errorf("signals = %+v, want all HOLD", res.Signals)
	}
}

func randomWalk(n int, seed uint64) []types.PriceBar {
	r := rand.New(rand.NewPCG(seed, seed))
	bars := make([]types.PriceBar, n)
	p := 50.0
	for i := range bars {
		p *= 1 + (r.Float64()-0.5)*0.08
		b := bar(i, p, r.Float64()*2-1)
		b.High, b.Low = p*1.01, p*0.99
		bars[i] = b
	}
	return bars
}

func TestRunMarkToMarketInvariant(t *testing.T) {
	bars := randomWalk(250, 3)
	cfg := baseConfig()
	cfg.SentimentWeight, cfg.TechnicalWeight = 0.6, 0.4
	cfg.BuyThreshold, cfg.SellThreshold = 0.2, -0.2
	cfg.CommissionRate = 0.001

	res, err := New().Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected the random walk to trade")
	}
	for i, p := range res.Equity {
		if p.Quantity < 0 {
			t.Fatalf("bar %d: negative quantity %d", i, p.Quantity)
		}
		if p.Cash < -1e-9 {
			t.Fatalf("bar %d: negative cash %v", i, p.Cash)
		}
		if got := p.Cash + float64(float64(p.Quantity)*p.Close); got != p.Value {
			t.Fatalf("bar %d: cash+qty*close = %v, value = %v", i, got, p.Value)
		}
		if !p.Date.Equal(bars[i].Timestamp) {
			t.Fatalf("bar %d: equity date %v, want %v", i, p.Date, bars[i].Timestamp)
		}
	}
	for _, f := range res.Trades {
		if f.Side == types.ActionSell && math.Abs(f.NetPnL-(f.PnL-f.Fee)) < 1e-12 && f.Fee > 0 {
			// entry fee must also be deducted
			t.Errorf("net pnl %v only subtracts exit fee", f.NetPnL)
		}
	}
}

func TestRunEquityExactWithFractionalCash(t *testing.T) {
	cfg := baseConfig()
	cfg.SentimentWeight, cfg.TechnicalWeight = 0.6, 0.4
	cfg.BuyThreshold, cfg.SellThreshold = 0.2, -0.2
	cfg.CommissionRate = 0.0013
	cfg.InitialCapital = 10000.37

	mismatches, points := 0, 0
	for seed := uint64(1); seed <= 20; seed++ {
		cfg.Seed = seed
		res, err := New().Run(context.Background(), randomWalk(200, seed), cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, p := range res.Equity {
			points++
			if p.Cash+float64(float64(p.Quantity)*p.Close) != p.Value {
				mismatches++
			}
		}
		if n := len(res.Equity); n > 0 && res.FinalValue != res.Equity[n-1].Value {
			t.Errorf("seed %d: final value %v, last equity %v", seed, res.FinalValue, res.Equity[n-1].Value)
		}
	}
	if mismatches != 0 {
		t.Errorf("cash+qty*close != value on %d of %d points", mismatches, points)
	}
}

func TestRunDeterministicForSeed(t *testing.T) {
	bars := randomWalk(120, 9)
	cfg := baseConfig()
	cfg.SentimentWeight, cfg.TechnicalWeight = 0.5, 0.5
	cfg.BuyThreshold, cfg.SellThreshold = 0.15, -0.15

	eng := New()
	a, err := eng.Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := eng.Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two runs with the same seed differ")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0)}
	tests := []struct {
		name   string
		mutate func(c *types.BacktestConfig)
	}{
		{"inverted thresholds", func(c *types.BacktestConfig) { c.BuyThreshold, c.SellThreshold = -0.5, 0.5 }},
		{"zero capital", func(c *types.BacktestConfig) { c.InitialCapital = 0 }},
		{"weight out of range", func(c *types.BacktestConfig) { c.TechnicalWeight = 2 }},
		{"bad sizing", func(c *types.BacktestConfig) { c.Sizing.Policy = "double_down" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			res, err := New().Run(context.Background(), bars, cfg)
			if !errors.Is(err, types.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
			if res != nil {
				t.Error("result should be nil on configuration error")
			}
		})
	}
}

func TestRunRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		bars []types.PriceBar
	}{
		{"out of order", []types.PriceBar{bar(1, 100, 0), bar(0, 100, 0)}},
		{"duplicate timestamp", []types.PriceBar{bar(0, 100, 0), bar(0, 101, 0)}},
		{"negative price", []types.PriceBar{bar(0, -1, 0)}},
		{"nan price", []types.PriceBar{bar(0, math.NaN(), 0)}},
		{"sentiment out of range", []types.PriceBar{bar(0, 100, 1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Run(context.Background(), tt.bars, baseConfig())
			if !errors.Is(err, types.ErrData) {
				t.Errorf("err = %v, want ErrData", err)
			}
		})
	}
}

func TestRunEmptySeries(t *testing.T) {
	res, err := New().Run(context.Background(), nil, baseConfig())
	if err != nil {
		t.Fatalf("Run(empty): %v", err)
	}
	if len(res.Trades) != 0 || len(res.Equity) != 0 {
		t.Errorf("trades %d equity %d, want 0/0", len(res.Trades), len(res.Equity))
	}
	if res.FinalValue != 10000 || res.TotalReturn != 0 || res.MaxDrawdown != 0 || res.SharpeRatio != 0 {
		t.Errorf("degenerate result = %+v", res)
	}
}

func TestRunOpenPositionHandling(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0.9), bar(1, 120, 0), bar(2, 125, 0)}

	res, err := New().Run(context.Background(), bars, baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 || res.OpenPosition.Quantity != 100 {
		t.Errorf("mark-to-market only: trades %d open %+v", len(res.Trades), res.OpenPosition)
	}
	if res.FinalValue != 12500 {
		t.Errorf("final value = %v, want 12500", res.FinalValue)
	}
	if res.Stats.ClosedTrades != 0 {
		t.Errorf("closed trades = %d, want 0", res.Stats.ClosedTrades)
	}

	cfg := baseConfig()
	cfg.CloseOpenPosition = true
	res, err = New().Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 2 || res.OpenPosition.Quantity != 0 {
		t.Fatalf("liquidation: trades %d open %+v", len(res.Trades), res.OpenPosition)
	}
	last := res.Trades[1]
	if last.Reason != reasonEndOfPeriod || last.PnL != 2500 {
		t.Errorf("liquidation fill = %+v", last)
	}
	if res.FinalValue != 12500 || res.Equity[2].Cash != 12500 {
		t.Errorf("final value %v cash %v, want 12500", res.FinalValue, res.Equity[2].Cash)
	}
}

func TestRunCommission(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0), bar(1, 110, 0)}
	cfg := baseConfig()
	cfg.CommissionRate = 0.01

	res, err := New(script(types.ActionBuy, types.ActionSell)).Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	buy, sell := res.Trades[0], res.Trades[1]
	// floor(10000 / 101) = 99
	if buy.Quantity != 99 {
		t.Fatalf("buy qty = %d, want 99", buy.Quantity)
	}
	if math.Abs(buy.Fee-99) > 1e-9 {
		t.Errorf("entry fee = %v, want 99", buy.Fee)
	}
	if math.Abs(sell.PnL-990) > 1e-9 {
		t.Errorf("gross pnl = %v, want 990", sell.PnL)
	}
	if want := 990 - 99 - 108.9; math.Abs(sell.NetPnL-want) > 1e-9 {
		t.Errorf("net pnl = %v, want %v", sell.NetPnL, want)
	}
	if want := 10000 - 9900 - 99 + 10890 - 108.9; math.Abs(res.FinalValue-want) > 1e-9 {
		t.Errorf("final value = %v, want %v", res.FinalValue, want)
	}
}

func TestRunSizers(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0), bar(1, 100, 0)}
	tests := []struct {
		name    string
		sizer   Sizer
		wantQty int64
	}{
		{"all in", AllIn{}, 100},
		{"fixed fraction", FixedFraction{Fraction: 0.25}, 25},
		{"fixed quantity", FixedQuantity{Quantity: 7}, 7},
		{"fixed quantity clamped", FixedQuantity{Quantity: 1000}, 100},
		{"volatility scaled without history", VolatilityScaled{RiskFraction: 0.1}, 10},
		// 5% base * 0.9 confidence * 1.5 low risk = 6.75% of 10000
		{"risk scaled uses decision confidence", RiskScaled{}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(WithSizer(tt.sizer), script(types.ActionBuy)).Run(context.Background(), bars, baseConfig())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Trades) != 1 || res.Trades[0].Quantity != tt.wantQty {
				t.Errorf("trades = %+v, want one buy of %d", res.Trades, tt.wantQty)
			}
		})
	}
}

func TestRunSizingFromConfig(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0)}
	cfg := baseConfig()
	cfg.Sizing = types.SizingConfig{Policy: types.SizingFixedFraction, Fraction: 0.5}
	res, err := New(script(types.ActionBuy)).Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Trades[0].Quantity != 50 {
		t.Errorf("qty = %d, want 50", res.Trades[0].Quantity)
	}
}

func TestRunSkipsBuyWhileHoldingAndSellWhenFlat(t *testing.T) {
	bars := []types.PriceBar{bar(0, 100, 0), bar(1, 100, 0), bar(2, 100, 0), bar(3, 100, 0)}
	eng := New(script(types.ActionSell, types.ActionBuy, types.ActionBuy, types.ActionSell))
	res, err := eng.Run(context.Background(), bars, baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("trades = %+v, want buy then sell", res.Trades)
	}
	if res.Trades[0].Time != bars[1].Timestamp || res.Trades[1].Time != bars[3].Timestamp {
		t.Errorf("fill times = %v, %v", res.Trades[0].Time, res.Trades[1].Time)
	}
}

func TestRunBuyNeedsCashForOneUnit(t *testing.T) {
	bars := []types.PriceBar{bar(0, 20000, 0)}
	res, err := New(script(types.ActionBuy)).Run(context.Background(), bars, baseConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %+v, want none when price exceeds cash", res.Trades)
	}
}

func TestRunStatsMatchAnalyzer(t *testing.T) {
	bars := randomWalk(200, 21)
	cfg := baseConfig()
	cfg.BuyThreshold, cfg.SellThreshold = 0.3, -0.3

	res, err := New().Run(context.Background(), bars, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	again := performance.Analyze(res.Equity, res.Trades, cfg.InitialCapital)
	if again != res.Stats {
		t.Errorf("re-analysis differs:\n%+v\n%+v", again, res.Stats)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Run(ctx, randomWalk(10, 1), baseConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
