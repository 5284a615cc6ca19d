package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoScalpBot/internal/domain"
	"cryptoScalpBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository using SQLite. It is an
// append-only journal of reconciled fills; same-day queries feed restart-time
// risk seeding and diagnostics.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the journal database and verifies the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/scalp_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the trading loop and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; a single connection avoids
	// SQLITE_BUSY churn in the Go driver.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Trade journal ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		is_stop_loss INTEGER NOT NULL DEFAULT 0,
		pnl REAL DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_market_executed_at ON trades (market, executed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing trade journal")
		return r.db.Close()
	}
	return nil
}

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (market, side, price, quantity, executed_at, is_stop_loss, pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var pnl sql.NullFloat64
	if trade.PnL != nil {
		pnl = sql.NullFloat64{Float64: *trade.PnL, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.Market, string(trade.Side), trade.Price, trade.Quantity,
		trade.Timestamp, trade.IsStopLoss, pnl)
	if err != nil {
		return 0, fmt.Errorf("%w: insert trade for market %s: %v", ports.ErrQueryFailed, trade.Market, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Market, err)
	}
	r.logger.Debug(ctx, "Trade journaled", map[string]interface{}{
		"tradeID": id, "market": trade.Market, "side": string(trade.Side),
	})
	return id, nil
}

// FindTodayByMarket retrieves today's trades for a market in chronological order.
func (r *Repository) FindTodayByMarket(ctx context.Context, market string) ([]*domain.Trade, error) {
	const query = `
	SELECT market, side, price, quantity, executed_at, is_stop_loss, pnl
	FROM trades
	WHERE market = ? AND date(executed_at) = date('now', 'localtime')
	ORDER BY executed_at ASC`

	rows, err := r.db.QueryContext(ctx, query, market)
	if err != nil {
		return nil, fmt.Errorf("%w: query today's trades for market %s: %v", ports.ErrQueryFailed, market, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTodayByMarket: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// SumTodayLossByMarket sums the absolute value of today's negative realized
// PnL for a market.
func (r *Repository) SumTodayLossByMarket(ctx context.Context, market string) (float64, error) {
	const query = `
	SELECT COALESCE(SUM(-pnl), 0)
	FROM trades
	WHERE market = ? AND pnl < 0 AND date(executed_at) = date('now', 'localtime')`

	var loss float64
	if err := r.db.QueryRowContext(ctx, query, market).Scan(&loss); err != nil {
		return 0, fmt.Errorf("%w: sum today's loss for market %s: %v", ports.ErrQueryFailed, market, err)
	}
	return loss, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side string
	var pnl sql.NullFloat64
	err := s.Scan(&t.Market, &side, &t.Price, &t.Quantity, &t.Timestamp, &t.IsStopLoss, &pnl)
	if err != nil {
		return nil, err
	}
	t.Side = domain.SignalAction(side)
	if pnl.Valid {
		v := pnl.Float64
		t.PnL = &v
	}
	return t, nil
}
