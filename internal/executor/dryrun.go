package executor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

// VirtualTrade is an in-memory record of a dry-run fill.
type VirtualTrade struct {
	Side      position.Side
	Size      float64
	Price     float64
	Leverage  int
	Open      bool
	CloseReason string
}

// DryRunExecutor records entries and exits in memory instead of placing
// real orders — no balance check applies to it, matching the
// orchestrator's dry-run bypass.
type DryRunExecutor struct {
	mu     sync.Mutex
	log    zerolog.Logger
	open   *VirtualTrade
	closed []VirtualTrade
}

// NewDryRunExecutor constructs a dry-run executor.
func NewDryRunExecutor(logger zerolog.Logger) *DryRunExecutor {
	return &DryRunExecutor{log: logger.With().Str("component", "dry-run-executor").Logger()}
}

func (d *DryRunExecutor) enter(side position.Side, order Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.open = &VirtualTrade{Side: side, Size: order.Size, Price: order.Price, Leverage: order.Leverage, Open: true}
	d.log.Info().
		Str("side", side.String()).
		Float64("size", order.Size).
		Float64("price", order.Price).
		Msg("dry-run: virtual entry recorded")
	return nil
}

// EnterLong records a virtual long entry.
func (d *DryRunExecutor) EnterLong(ctx context.Context, order Order) error {
	return d.enter(position.Long, order)
}

// EnterShort records a virtual short entry.
func (d *DryRunExecutor) EnterShort(ctx context.Context, order Order) error {
	return d.enter(position.Short, order)
}

// ClosePosition records a virtual close. No-op (and no error) if nothing
// is open, matching the live executor's shape.
func (d *DryRunExecutor) ClosePosition(ctx context.Context, reason string, meta *CloseMeta) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open == nil {
		return nil
	}
	exit := *d.open
	exit.Open = false
	exit.CloseReason = reason
	d.closed = append(d.closed, exit)
	d.open = nil

	d.log.Info().Str("reason", reason).Msg("dry-run: virtual close recorded")
	return nil
}

// OpenTrade returns the currently open virtual trade, if any.
func (d *DryRunExecutor) OpenTrade() (VirtualTrade, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == nil {
		return VirtualTrade{}, false
	}
	return *d.open, true
}

// ClosedTrades returns all virtual trades closed so far.
func (d *DryRunExecutor) ClosedTrades() []VirtualTrade {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]VirtualTrade, len(d.closed))
	copy(out, d.closed)
	return out
}
