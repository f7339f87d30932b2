package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

// OrderPlacer is the narrow exchange surface the live executor needs: a
// single market order placement and a reduce-only close. It is
// satisfied by internal/exchange's REST client; keeping it this narrow
// lets the executor be tested without a real exchange connection.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side position.Side, size float64) error
	ClosePosition(ctx context.Context, symbol string) error
}

// LiveExecutor places real orders through an OrderPlacer.
type LiveExecutor struct {
	log    zerolog.Logger
	symbol string
	orders OrderPlacer
}

// NewLiveExecutor constructs a live executor for symbol.
func NewLiveExecutor(symbol string, orders OrderPlacer, logger zerolog.Logger) *LiveExecutor {
	return &LiveExecutor{log: logger.With().Str("component", "live-executor").Logger(), symbol: symbol, orders: orders}
}

// EnterLong places a market buy to open (or add to) a long position.
func (l *LiveExecutor) EnterLong(ctx context.Context, order Order) error {
	if err := l.orders.PlaceMarketOrder(ctx, l.symbol, position.Long, order.Size); err != nil {
		return fmt.Errorf("executor: enter long: %w", err)
	}
	return nil
}

// EnterShort places a market sell to open (or add to) a short position.
func (l *LiveExecutor) EnterShort(ctx context.Context, order Order) error {
	if err := l.orders.PlaceMarketOrder(ctx, l.symbol, position.Short, order.Size); err != nil {
		return fmt.Errorf("executor: enter short: %w", err)
	}
	return nil
}

// ClosePosition closes the open position at market, regardless of side.
func (l *LiveExecutor) ClosePosition(ctx context.Context, reason string, meta *CloseMeta) error {
	if err := l.orders.ClosePosition(ctx, l.symbol); err != nil {
		return fmt.Errorf("executor: close position (%s): %w", reason, err)
	}
	return nil
}
