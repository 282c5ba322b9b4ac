package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sentiment-trader/internal/types"
)

var (
	runTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_trader_backtest_runs_total",
			Help: "Total number of backtest runs",
		},
		[]string{"symbol", "status"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentiment_trader_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"symbol"},
	)

	fillTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_trader_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"symbol", "side"},
	)

	decisionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_trader_decisions_total",
			Help: "Total number of signal decisions",
		},
		[]string{"symbol", "action"},
	)

	lastReturnPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentiment_trader_last_return_percent",
			Help: "Total return percent of the latest run",
		},
		[]string{"symbol"},
	)

	lastDrawdownPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentiment_trader_last_max_drawdown_percent",
			Help: "Max drawdown percent of the latest run",
		},
		[]string{"symbol"},
	)

	sentimentScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentiment_trader_sentiment_score",
			Help: "Latest aggregated headline sentiment",
		},
		[]string{"symbol"},
	)
)

// Recorder records backtest and signal metrics on the default registry.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordRun records a finished run; res is ignored when err is set.
func (r *Recorder) RecordRun(symbol string, res *types.BacktestResult, err error, d time.Duration) {
	runDuration.WithLabelValues(symbol).Observe(d.Seconds())
	if err != nil || res == nil {
		runTotal.WithLabelValues(symbol, "error").Inc()
		return
	}
	runTotal.WithLabelValues(symbol, "ok").Inc()

	for _, f := range res.Trades {
		fillTotal.WithLabelValues(symbol, string(f.Side)).Inc()
	}
	decisionTotal.WithLabelValues(symbol, string(types.ActionBuy)).Add(float64(res.Signals.Buy))
	decisionTotal.WithLabelValues(symbol, string(types.ActionSell)).Add(float64(res.Signals.Sell))
	decisionTotal.WithLabelValues(symbol, string(types.ActionHold)).Add(float64(res.Signals.Hold))

	lastReturnPercent.WithLabelValues(symbol).Set(res.TotalReturnPercent)
	lastDrawdownPercent.WithLabelValues(symbol).Set(res.MaxDrawdown)
}

// RecordDecision counts a single decision made outside a backtest.
func (r *Recorder) RecordDecision(symbol string, a types.Action) {
	decisionTotal.WithLabelValues(symbol, string(a)).Inc()
}

func (r *Recorder) SetSentiment(symbol string, score float64) {
	sentimentScore.WithLabelValues(symbol).Set(score)
}
