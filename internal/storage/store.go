package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sentiment-trader/internal/logger"
	"sentiment-trader/internal/types"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Config configures the audit database.
type Config struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
}

// Store persists backtest runs and their fills in SQLite through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens the database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: storage dsn is empty", types.ErrConfiguration)
	}

	logLevel := gormlogger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = gormlogger.Error
	case "warn":
		logLevel = gormlogger.Warn
	case "info":
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&Run{}, &FillRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun stores res and its fills in one transaction and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, res *types.BacktestResult) (string, error) {
	if res == nil {
		return "", fmt.Errorf("%w: nil backtest result", types.ErrData)
	}
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}

	run := Run{
		ID:                      uuid.NewString(),
		Symbol:                  res.Config.Symbol,
		InitialCapital:          res.Config.InitialCapital,
		FinalValue:              res.FinalValue,
		TotalReturnPercent:      res.TotalReturnPercent,
		MaxDrawdown:             res.MaxDrawdown,
		SharpeRatio:             res.SharpeRatio,
		BuyAndHoldReturnPercent: res.BuyAndHoldReturnPercent,
		ClosedTrades:            res.Stats.ClosedTrades,
		ConfigJSON:              string(cfgJSON),
		StatsJSON:               string(statsJSON),
		CreatedAt:               s.now(),
	}
	fills := make([]FillRecord, len(res.Trades))
	for i, f := range res.Trades {
		fills[i] = FillRecord{
			RunID:     run.ID,
			Seq:       i,
			Time:      f.Time,
			Side:      string(f.Side),
			Price:     f.Price,
			Quantity:  f.Quantity,
			Fee:       f.Fee,
			PnL:       f.PnL,
			NetPnL:    f.NetPnL,
			CashAfter: f.CashAfter,
			Reason:    f.Reason,
		}
	}

	op := logger.StartOperation(ctx, "storage.SaveRun", "run_id", run.ID, "symbol", run.Symbol)
	err = s.db.WithContext(op.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Fills").Create(&run).Error; err != nil {
			return err
		}
		if len(fills) == 0 {
			return nil
		}
		return tx.CreateInBatches(fills, 100).Error
	})
	if err != nil {
		op.EndWithError(err)
		return "", fmt.Errorf("save run: %w", err)
	}
	op.End("fills", len(fills))
	return run.ID, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	query := s.db.WithContext(ctx).Model(&Run{})
	if f.Symbol != "" {
		query = query.Where("symbol = ?", f.Symbol)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	query = query.Order("created_at DESC").Order("id")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	runs := []Run{}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run with its decoded config and stats.
func (s *Store) GetRun(ctx context.Context, id string) (Run, types.BacktestConfig, types.Stats, error) {
	var run Run
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, types.BacktestConfig{}, types.Stats{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, types.BacktestConfig{}, types.Stats{}, err
	}

	var cfg types.BacktestConfig
	if err := json.Unmarshal([]byte(run.ConfigJSON), &cfg); err != nil {
		return Run{}, types.BacktestConfig{}, types.Stats{}, fmt.Errorf("decode config of run %s: %w", id, err)
	}
	var stats types.Stats
	if err := json.Unmarshal([]byte(run.StatsJSON), &stats); err != nil {
		return Run{}, types.BacktestConfig{}, types.Stats{}, fmt.Errorf("decode stats of run %s: %w", id, err)
	}
	return run, cfg, stats, nil
}

// Fills returns a run's fills in execution order.
func (s *Store) Fills(ctx context.Context, runID string) ([]types.Fill, error) {
	var records []FillRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.Fill, len(records))
	for i, r := range records {
		out[i] = r.toFill()
	}
	return out, nil
}
