// Package tradehistory persists closed trades to Postgres for
// after-the-fact reporting. It is strictly best-effort: a write failure
// is returned to the orchestrator, which logs it and carries on; it is
// never fed back into trading decisions. Record runs synchronously on
// the caller's goroutine.
package tradehistory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/stats"
)

// Repository wraps a Postgres connection pool scoped to the
// trade_history table.
type Repository struct {
	log  zerolog.Logger
	pool *pgxpool.Pool
}

// NewRepository dials Postgres per cfg and runs the schema migration.
func NewRepository(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Repository, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("tradehistory: parse config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("tradehistory: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("tradehistory: ping: %w", err)
	}

	r := &Repository{log: logger.With().Str("component", "trade-history").Logger(), pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trade_history (
			id SERIAL PRIMARY KEY,
			trade_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(5) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			leverage INT NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL,
			pnl_percent DECIMAL(10, 4) NOT NULL,
			reason VARCHAR(64) NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("tradehistory: migrate: %w", err)
	}
	_, err = r.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_trade_history_symbol ON trade_history(symbol)`)
	if err != nil {
		return fmt.Errorf("tradehistory: migrate index: %w", err)
	}
	return nil
}

// Record inserts one closed trade. Callers should treat a non-nil error
// as "log and move on", not as a reason to halt trading.
func (r *Repository) Record(ctx context.Context, tradeID, symbol string, t stats.Trade) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trade_history
			(trade_id, symbol, side, entry_price, exit_price, size, leverage, pnl, pnl_percent, reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tradeID, symbol, t.Side.String(), t.EntryPrice, t.ExitPrice, t.Size, int(t.Leverage),
		t.PnL, t.PnLPct, t.Reason, t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("tradehistory: record trade %s: %w", tradeID, err)
	}
	return nil
}

// Recent returns the most recent closed trades for symbol, newest
// first, bounded by limit.
func (r *Repository) Recent(ctx context.Context, symbol string, limit int) ([]stats.Trade, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT side, entry_price, exit_price, size, leverage, pnl, pnl_percent, reason, opened_at, closed_at
		FROM trade_history
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("tradehistory: query recent: %w", err)
	}
	defer rows.Close()

	var out []stats.Trade
	for rows.Next() {
		var sideStr, reason string
		var t stats.Trade
		var leverage int
		if err := rows.Scan(&sideStr, &t.EntryPrice, &t.ExitPrice, &t.Size, &leverage, &t.PnL, &t.PnLPct, &reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("tradehistory: scan: %w", err)
		}
		t.Side = parseSide(sideStr)
		t.Leverage = float64(leverage)
		t.Reason = reason
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tradehistory: rows: %w", err)
	}
	return out, nil
}

func parseSide(s string) position.Side {
	switch s {
	case position.Long.String():
		return position.Long
	case position.Short.String():
		return position.Short
	default:
		return position.Flat
	}
}
