package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sentiment-trader/internal/api"
	"sentiment-trader/internal/backtest"
	"sentiment-trader/internal/backtest/backtestobs"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/metrics"
	"sentiment-trader/internal/report"
	"sentiment-trader/internal/store"
	"sentiment-trader/internal/tradelog"
	"sentiment-trader/internal/types"
)

// runSummary is the per-run line printed by the CLI.
type runSummary struct {
	RunID          string             `json:"run_id,omitempty"`
	Symbol         string             `json:"symbol"`
	Params         types.SignalParams `json:"params"`
	FinalValue     float64            `json:"final_value"`
	Stats          types.Stats        `json:"stats"`
	Signals        types.SignalCounts `json:"signals"`
	BuyAndHold     float64            `json:"buy_and_hold_return_percent"`
	Outperformance float64            `json:"outperformance"`
	Fills          int                `json:"fills"`
	OpenQuantity   int64              `json:"open_quantity"`
	Reports        *report.Paths      `json:"reports,omitempty"`
}

func summarize(id string, res *types.BacktestResult) runSummary {
	return runSummary{
		RunID:          id,
		Symbol:         res.Config.Symbol,
		Params:         res.Config.Params(),
		FinalValue:     res.FinalValue,
		Stats:          res.Stats,
		Signals:        res.Signals,
		BuyAndHold:     res.BuyAndHoldReturnPercent,
		Outperformance: res.Outperformance,
		Fills:          len(res.Trades),
		OpenQuantity:   res.OpenPosition.Quantity,
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	pricesPath := flag.String("prices", "", "price CSV (overrides data.prices_csv)")
	symbol := flag.String("symbol", "", "instrument symbol (overrides backtest.symbol)")
	headlinesPath := flag.String("headlines", "", "saved news listing HTML to score (overrides data.headlines_html)")
	sourceName := flag.String("source", "MoneyControl", "news source whose selectors parse -headlines")
	live := flag.Bool("live", false, "scrape current headlines from the configured news sources")
	sweep := flag.Bool("sweep", false, "run the sweep grid from the config instead of a single backtest")
	serverURL := flag.String("server", "", "run remotely against a sentiment-trader server at this URL")
	output := flag.String("output", "", "write the JSON summary to this file instead of stdout")
	noReports := flag.Bool("no-reports", false, "skip CSV reports and the trade journal")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer shutdownSystem()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		configPath:     *configPath,
		explicitConfig: explicitConfig,
		pricesPath:     *pricesPath,
		symbol:         *symbol,
		headlinesPath:  *headlinesPath,
		sourceName:     *sourceName,
		live:           *live,
		sweep:          *sweep,
		serverURL:      *serverURL,
		output:         *output,
		reports:        !*noReports,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Backtest failed", err)
		shutdownSystem()
		os.Exit(1)
	}
}

type options struct {
	configPath     string
	explicitConfig bool
	pricesPath     string
	symbol         string
	headlinesPath  string
	sourceName     string
	live           bool
	sweep          bool
	serverURL      string
	output         string
	reports        bool
}

func run(ctx context.Context, opt options) error {
	cfg, err := loadConfig(ctx, opt.configPath, opt.explicitConfig)
	if err != nil {
		return err
	}
	if opt.symbol != "" {
		cfg.Backtest.Symbol = opt.symbol
	}
	if opt.pricesPath == "" {
		opt.pricesPath = cfg.Data.PricesCSV
	}
	if opt.headlinesPath == "" {
		opt.headlinesPath = cfg.Data.HeadlinesHTML
	}

	bc, err := cfg.BacktestConfig()
	if err != nil {
		return err
	}
	bars, err := loadBars(ctx, opt.pricesPath, bc)
	if err != nil {
		return err
	}
	headlines, err := loadHeadlines(ctx, cfg, opt.headlinesPath, opt.sourceName, opt.live)
	if err != nil {
		return err
	}
	bars = applyHeadlineSentiment(bars, headlines, bc.Seed)

	configs := []types.BacktestConfig{bc}
	if opt.sweep {
		configs = backtest.Grid(bc, cfg.Sweep.BuyThresholds, cfg.Sweep.SellThresholds, cfg.Sweep.SentimentWeights)
		if len(configs) == 0 {
			return fmt.Errorf("%w: sweep grid is empty", types.ErrConfiguration)
		}
	}

	var summaries []runSummary
	if opt.serverURL != "" {
		summaries, err = runRemote(ctx, opt.serverURL, bars, configs, opt.sweep, cfg.Sweep.Workers)
	} else {
		summaries, err = runLocal(ctx, cfg, bars, configs, opt.sweep, opt.reports)
	}
	if err != nil {
		return err
	}
	return writeSummaries(opt.output, summaries)
}

func runLocal(ctx context.Context, cfg *store.Config, bars []types.PriceBar, configs []types.BacktestConfig, sweep, reports bool) ([]runSummary, error) {
	runner := backtestobs.Wrap(backtest.New(), metrics.NewRecorder())

	var results []*types.BacktestResult
	if sweep {
		rs, err := backtest.Sweep(ctx, runner, bars, configs, cfg.Sweep.Workers)
		if err != nil {
			return nil, err
		}
		results = rs
	} else {
		res, err := runner.Run(ctx, bars, configs[0])
		if err != nil {
			return nil, err
		}
		results = []*types.BacktestResult{res}
	}

	st := openStorage(ctx, cfg)
	if st != nil {
		defer st.Close()
	}
	journal := tradelog.New(cfg.TradeLog.Dir)
	writer := report.New(cfg.Report.Dir)

	summaries := make([]runSummary, 0, len(results))
	for _, res := range results {
		id := ""
		if st != nil {
			saved, err := st.SaveRun(ctx, res)
			if err != nil {
				logger.ErrorWithErr(ctx, "Failed to persist run", err, "symbol", res.Config.Symbol)
			}
			id = saved
		}
		if id == "" && reports {
			id = uuid.NewString()
		}

		sum := summarize(id, res)
		if reports {
			if err := journal.AppendFills(id, res.Config.Symbol, res.Trades); err != nil {
				logger.ErrorWithErr(ctx, "Failed to journal fills", err, "run_id", id)
			}
			paths, err := writer.Write(id, res)
			if err != nil {
				return nil, err
			}
			sum.Reports = &paths
		}
		summaries = append(summaries, sum)
	}

	if reports {
		finishJournal(ctx, cfg, journal)
	}
	return summaries, nil
}

// finishJournal compresses expired journal files and refreshes today's
// per-symbol roll-up.
func finishJournal(ctx context.Context, cfg *store.Config, journal *tradelog.Journal) {
	if n := cfg.TradeLog.RetentionDays; n > 0 {
		if err := journal.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}

	now := time.Now()
	out := filepath.Join(cfg.Report.Dir, "eod", tradelog.Day(now)+".csv")
	ok, err := report.SummarizeJournal(journal.FillsPath(now), out)
	switch {
	case err != nil:
		logger.Warn(ctx, "Failed to summarize journal", "error", err)
	case ok:
		logger.Info(ctx, "Daily summary written", "path", out)
	}
}

func runRemote(ctx context.Context, baseURL string, bars []types.PriceBar, configs []types.BacktestConfig, sweep bool, workers int) ([]runSummary, error) {
	client := api.NewClient(baseURL)
	if _, err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("server %s unavailable: %w", baseURL, err)
	}

	if sweep {
		resp, err := client.Sweep(ctx, api.SweepRequest{Configs: configs, Bars: bars, Workers: workers})
		if err != nil {
			return nil, err
		}
		out := make([]runSummary, 0, len(resp.Results))
		for _, res := range resp.Results {
			out = append(out, summarize("", res))
		}
		return out, nil
	}

	resp, err := client.Backtest(ctx, api.BacktestRequest{Config: configs[0], Bars: bars, Save: true})
	if err != nil {
		return nil, err
	}
	return []runSummary{summarize(resp.RunID, resp.Result)}, nil
}

func writeSummaries(path string, summaries []runSummary) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(summaries) == 1 {
		return enc.Encode(summaries[0])
	}
	return enc.Encode(summaries)
}
