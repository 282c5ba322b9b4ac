package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/storage"
	"sentiment-trader/internal/types"
)

// Client talks to a sentiment-trader server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	retry      RetryConfig
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets the retry policy for idempotent requests.
func WithRetry(rc RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = rc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(map[string]string),
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// do sends body as JSON and decodes a 2xx reply into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debug(ctx, "HTTP Response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"bodySize", len(data))

	if resp.StatusCode >= 400 {
		var e ErrorResponse
		msg := string(data)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var out BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (*SweepResponse, error) {
	var out SweepResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sweep", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signal(ctx context.Context, req SignalRequest) (*SignalResponse, error) {
	var out SignalResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/api/v1/signal", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sentiment(ctx context.Context, req SentimentRequest) (*types.NewsSentiment, error) {
	var out types.NewsSentiment
	if err := c.doWithRetry(ctx, http.MethodPost, "/api/v1/sentiment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, symbol string, limit int) ([]storage.Run, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []storage.Run
	if err := c.doWithRetry(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doWithRetry(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     5 * time.Second,
	}
}

// doWithRetry retries transport failures and 5xx replies with exponential
// backoff. Client errors are returned at once.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body, out any) error {
	attempts := max(c.retry.MaxAttempts, 1)
	wait := c.retry.InitialWait

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && se.StatusCode < 500 {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Warn(ctx, "Request failed, retrying", "attempt", attempt, "error", err, "waitTime", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if c.retry.MaxWait > 0 && wait > c.retry.MaxWait {
			wait = c.retry.MaxWait
		}
	}
	return fmt.Errorf("all %d retry attempts failed: %w", attempts, lastErr)
}
