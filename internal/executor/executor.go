// Package executor defines the Executor interface used by the
// orchestrator to place and close orders, and classifies the exchange
// errors that are recoverable (insufficient balance) from the ones that
// must propagate.
package executor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"binance-trading-bot/internal/position"
)

// Order is the orchestrator's request to open a position.
type Order struct {
	Side      position.Side
	Size      float64
	Price     float64
	Leverage  int
	Timestamp time.Time
}

// CloseMeta carries optional context for a close, used to derive the
// exit price when the caller doesn't have a fresher one.
type CloseMeta struct {
	Close *float64
	Price *float64
}

// ExitPrice resolves meta.Close -> meta.Price -> fallback, per the
// documented precedence.
func (m *CloseMeta) ExitPrice(fallback float64) float64 {
	if m == nil {
		return fallback
	}
	if m.Close != nil {
		return *m.Close
	}
	if m.Price != nil {
		return *m.Price
	}
	return fallback
}

// Executor is the single interface behind both the dry-run and live
// order-placement modes; the orchestrator is mode-agnostic beyond the
// balance-check bypass it applies itself in dry-run.
type Executor interface {
	EnterLong(ctx context.Context, order Order) error
	EnterShort(ctx context.Context, order Order) error
	ClosePosition(ctx context.Context, reason string, meta *CloseMeta) error
}

// balanceErrorCodes are Binance API error codes for insufficient margin
// or balance, which the orchestrator treats as a skip rather than fatal.
var balanceErrorCodes = map[string]bool{
	"-2019": true, // margin is insufficient
	"-2010": true, // account has insufficient balance for requested action
}

// IsBalanceError reports whether err represents a recoverable
// insufficient-balance condition: a recognized exchange error code, or
// error text mentioning balance/insufficiency.
func IsBalanceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if code, ok := extractErrorCode(msg); ok && balanceErrorCodes[code] {
		return true
	}

	lower := strings.ToLower(msg)
	return strings.Contains(lower, "balance") || strings.Contains(lower, "insufficient")
}

// extractErrorCode looks for a leading integer code such as "-2019" at
// the start of a Binance-style error message ("-2019 Margin is
// insufficient.").
func extractErrorCode(msg string) (string, bool) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return "", false
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return "", false
	}
	return fields[0], true
}
