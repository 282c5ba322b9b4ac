package store

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sentiment-trader/internal/types"
)

const dateLayout = "2006-01-02"

type Config struct {
	Backtest struct {
		Symbol              string  `yaml:"symbol"`
		StartDate           string  `yaml:"start_date"`
		EndDate             string  `yaml:"end_date"`
		InitialCapital      float64 `yaml:"initial_capital"`
		BuyThreshold        float64 `yaml:"buy_threshold"`
		SellThreshold       float64 `yaml:"sell_threshold"`
		SentimentWeight     float64 `yaml:"sentiment_weight"`
		TechnicalWeight     float64 `yaml:"technical_weight"`
		Seed                uint64  `yaml:"seed"`
		CommissionRate      float64 `yaml:"commission_rate"`
		AnnualizationFactor float64 `yaml:"annualization_factor"`
		CloseOpenPosition   bool    `yaml:"close_open_position"`
		Lookback            int     `yaml:"lookback"`
	} `yaml:"backtest"`
	Sizing types.SizingConfig `yaml:"sizing"`
	Sweep  struct {
		BuyThresholds    []float64 `yaml:"buy_thresholds"`
		SellThresholds   []float64 `yaml:"sell_thresholds"`
		SentimentWeights []float64 `yaml:"sentiment_weights"`
		Workers          int       `yaml:"workers"`
	} `yaml:"sweep"`
	Data struct {
		PricesCSV     string `yaml:"prices_csv"`
		HeadlinesHTML string `yaml:"headlines_html"`
	} `yaml:"data"`
	News struct {
		Enabled         bool     `yaml:"enabled"`
		Sources         []string `yaml:"sources"`
		CacheTTLMinutes int      `yaml:"cache_ttl_minutes"`
		MaxHeadlines    int      `yaml:"max_headlines"`
		UserAgent       string   `yaml:"user_agent"`
		TimeoutSeconds  int      `yaml:"timeout_seconds"`
	} `yaml:"news"`
	Storage struct {
		Enabled bool   `yaml:"enabled"`
		DSN     string `yaml:"dsn"`
	} `yaml:"storage"`
	TradeLog struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"tradelog"`
	Report struct {
		Dir string `yaml:"dir"`
	} `yaml:"report"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	var c Config
	c.Backtest.InitialCapital = 100000
	c.Backtest.BuyThreshold = 0.2
	c.Backtest.SellThreshold = -0.2
	c.Backtest.SentimentWeight = 0.6
	c.Backtest.TechnicalWeight = 0.4
	c.Backtest.AnnualizationFactor = 252
	c.Backtest.Lookback = 60
	c.Sizing.Policy = types.SizingAllIn
	c.News.CacheTTLMinutes = 15
	c.News.MaxHeadlines = 20
	c.News.UserAgent = "sentiment-trader/1.0"
	c.News.TimeoutSeconds = 10
	c.Storage.DSN = "sentiment-trader.db"
	c.TradeLog.Dir = "logs"
	c.Report.Dir = "reports"
	c.Server.Addr = ":8080"
	return &c
}

func (c *Config) Validate() error {
	bc, err := c.BacktestConfig()
	if err != nil {
		return err
	}
	if err := bc.Validate(); err != nil {
		return err
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("%w: sweep.workers must not be negative, got %d", types.ErrConfiguration, c.Sweep.Workers)
	}
	if c.News.CacheTTLMinutes < 0 || c.News.MaxHeadlines < 0 || c.News.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: news cache_ttl_minutes, max_headlines and timeout_seconds must not be negative", types.ErrConfiguration)
	}
	if c.TradeLog.RetentionDays < 0 {
		return fmt.Errorf("%w: tradelog.retention_days must not be negative", types.ErrConfiguration)
	}
	if c.Storage.Enabled && c.Storage.DSN == "" {
		return fmt.Errorf("%w: storage.dsn is required when storage is enabled", types.ErrConfiguration)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr cannot be empty", types.ErrConfiguration)
	}
	return nil
}

// BacktestConfig converts the backtest and sizing sections into the engine input.
func (c *Config) BacktestConfig() (types.BacktestConfig, error) {
	b := c.Backtest
	start, err := parseDate("backtest.start_date", b.StartDate)
	if err != nil {
		return types.BacktestConfig{}, err
	}
	end, err := parseDate("backtest.end_date", b.EndDate)
	if err != nil {
		return types.BacktestConfig{}, err
	}
	return types.BacktestConfig{
		Symbol:              b.Symbol,
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      b.InitialCapital,
		BuyThreshold:        b.BuyThreshold,
		SellThreshold:       b.SellThreshold,
		SentimentWeight:     b.SentimentWeight,
		TechnicalWeight:     b.TechnicalWeight,
		Seed:                b.Seed,
		CommissionRate:      b.CommissionRate,
		AnnualizationFactor: b.AnnualizationFactor,
		CloseOpenPosition:   b.CloseOpenPosition,
		Lookback:            b.Lookback,
		Sizing:              c.Sizing,
	}, nil
}

// NewsCacheTTL is the news cache lifetime.
func (c *Config) NewsCacheTTL() time.Duration {
	return time.Duration(c.News.CacheTTLMinutes) * time.Minute
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", types.ErrConfiguration, field, s)
	}
	return t, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("BACKTEST_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: BACKTEST_SEED %q: %v", types.ErrConfiguration, v, err)
		}
		c.Backtest.Seed = seed
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
		c.Storage.Enabled = true
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// LoadConfig reads path over Default, applies env overrides and validates.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Sizing.Policy == "" {
		c.Sizing.Policy = types.SizingAllIn
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}
