package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentiment-trader/internal/api"
	"sentiment-trader/internal/interfaces"
	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/metrics"
	"sentiment-trader/internal/news"
	"sentiment-trader/internal/storage"
	"sentiment-trader/internal/tradelog"
	"sentiment-trader/internal/types"
)

const (
	maxSweepConfigs = 1000
	shutdownTimeout = 10 * time.Second
)

// Deps are the collaborators behind the HTTP surface. Store and Journal
// may be nil; the endpoints that need them then report 503 or skip the write.
type Deps struct {
	Runner       interfaces.Runner
	News         *news.Service
	Store        *storage.Store
	Journal      *tradelog.Journal
	Metrics      *metrics.Recorder
	Defaults     types.BacktestConfig
	SweepWorkers int
	LogRequests  bool
}

type Server struct {
	deps   Deps
	router *gin.Engine
}

func New(deps Deps) *Server {
	s := &Server{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.LogRequests))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/backtest", s.runBacktest)
	v1.POST("/sweep", s.runSweep)
	v1.POST("/signal", s.decide)
	v1.POST("/sentiment", s.scoreSentiment)
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info(ctx, "HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs every request when logAll is set, otherwise only 4xx/5xx.
func requestLogger(logAll bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if !logAll && status < 400 {
			return
		}
		fields := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", msg)
		}
		if status >= 500 {
			logger.Error(c.Request.Context(), "HTTP request", fields...)
			return
		}
		logger.Info(c.Request.Context(), "HTTP request", fields...)
	}
}

// fail maps domain errors to status codes and writes an ErrorResponse.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrConfiguration), errors.Is(err, types.ErrData):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.JSON(status, api.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msg})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Storage: s.deps.Store != nil,
		News:    s.deps.News != nil,
	})
}
