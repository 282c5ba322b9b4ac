package server

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sentiment-trader/internal/api"
	"sentiment-trader/internal/backtest"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/signal"
	"sentiment-trader/internal/storage"
	"sentiment-trader/internal/types"
)

// signalStream is the second PCG word for per-request decision jitter.
const signalStream = 0x516e616c516e616c

func (s *Server) runBacktest(c *gin.Context) {
	req := api.BacktestRequest{Config: s.deps.Defaults}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request: %v", err))
		return
	}
	ctx := c.Request.Context()

	res, err := s.deps.Runner.Run(ctx, req.Bars, req.Config)
	if err != nil {
		fail(c, err)
		return
	}

	resp := api.BacktestResponse{Result: res}
	if req.Save && s.deps.Store != nil {
		id, err := s.deps.Store.SaveRun(ctx, res)
		if err != nil {
			fail(c, err)
			return
		}
		resp.RunID = id
		if s.deps.Journal != nil {
			if err := s.deps.Journal.AppendFills(id, res.Config.Symbol, res.Trades); err != nil {
				logger.ErrorWithErr(ctx, "Failed to journal fills", err, "run_id", id)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) runSweep(c *gin.Context) {
	req := api.SweepRequest{Base: s.deps.Defaults}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request: %v", err))
		return
	}

	configs := req.Configs
	if len(configs) == 0 {
		configs = backtest.Grid(req.Base, req.BuyThresholds, req.SellThresholds, req.SentimentWeights)
	}
	if len(configs) == 0 {
		badRequest(c, "sweep has no configurations")
		return
	}
	if len(configs) > maxSweepConfigs {
		badRequest(c, fmt.Sprintf("sweep has %d configurations, limit is %d", len(configs), maxSweepConfigs))
		return
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.deps.SweepWorkers
	}
	results, err := backtest.Sweep(c.Request.Context(), s.deps.Runner, req.Bars, configs, workers)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SweepResponse{Results: results})
}

func (s *Server) decide(c *gin.Context) {
	var req api.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request: %v", err))
		return
	}

	params := s.deps.Defaults.Params()
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		fail(c, err)
		return
	}
	if req.Sentiment < -1 || req.Sentiment > 1 {
		badRequest(c, fmt.Sprintf("sentiment %v outside [-1,1]", req.Sentiment))
		return
	}

	gen := signal.NewGenerator(rand.New(rand.NewPCG(req.Seed, signalStream)))
	inputs := map[string]float64{"sentiment": req.Sentiment}
	var d types.SignalDecision
	if req.Technical != nil {
		if *req.Technical < -1 || *req.Technical > 1 {
			badRequest(c, fmt.Sprintf("technical %v outside [-1,1]", *req.Technical))
			return
		}
		inputs["technical"] = *req.Technical
		d = gen.Decide(req.Sentiment, *req.Technical, params)
	} else {
		d = gen.DecideSentiment(req.Sentiment, params)
	}

	ctx := c.Request.Context()
	logger.Decision(ctx, req.Symbol, string(d.Action), d.Confidence, d.Rationale, "combined", d.CombinedScore)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordDecision(req.Symbol, d.Action)
	}
	if s.deps.Journal != nil {
		if err := s.deps.Journal.AppendDecision(req.Symbol, d, inputs); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal decision", err, "symbol", req.Symbol)
		}
	}
	c.JSON(http.StatusOK, api.SignalResponse{Decision: d, Params: params})
}

func (s *Server) scoreSentiment(c *gin.Context) {
	var req api.SentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if s.deps.News == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "sentiment service not configured"})
		return
	}

	headlines := req.Headlines
	for _, t := range req.Texts {
		headlines = append(headlines, types.Headline{Symbol: req.Symbol, Title: t})
	}

	var (
		out types.NewsSentiment
		err error
	)
	switch {
	case len(headlines) > 0:
		out = s.deps.News.Score(req.Symbol, headlines)
	case req.Symbol != "":
		out, err = s.deps.News.GetSentiment(c.Request.Context(), req.Symbol)
	default:
		badRequest(c, "symbol, texts or headlines required")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if s.deps.Metrics != nil && req.Symbol != "" {
		s.deps.Metrics.SetSentiment(req.Symbol, out.Score)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listRuns(c *gin.Context) {
	if s.deps.Store == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "storage not configured"})
		return
	}
	f := storage.RunFilter{Symbol: c.Query("symbol"), Limit: 50}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Sprintf("invalid limit %q", v))
			return
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, fmt.Sprintf("invalid offset %q", v))
			return
		}
		f.Offset = n
	}

	runs, err := s.deps.Store.ListRuns(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	if s.deps.Store == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "storage not configured"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	run, cfg, stats, err := s.deps.Store.GetRun(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	fills, err := s.deps.Store.Fills(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":    run,
		"config": cfg,
		"stats":  stats,
		"fills":  fills,
	})
}
