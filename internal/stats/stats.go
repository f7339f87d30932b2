// Package stats implements per-trade PnL accounting and rolling
// aggregate metrics (C9).
package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

// Trade is one completed (or pending) position lifecycle.
type Trade struct {
	Side       position.Side
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Leverage   float64
	OpenedAt   time.Time
	ClosedAt   time.Time
	Reason     string
	PnL        float64
	PnLPct     float64
	Open       bool
}

// Aggregates summarizes closed trades.
type Aggregates struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	AvgWin       float64
	AvgLoss      float64
	ProfitFactor float64
	MaxDrawdown  float64
	LargestWin   float64
	LargestLoss  float64
}

// Tracker accumulates trades and exposes rolling aggregates.
type Tracker struct {
	mu      sync.Mutex
	log     zerolog.Logger
	pending *Trade
	closed  []Trade
}

// NewTracker constructs an empty trade statistics tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{log: logger.With().Str("component", "trade-stats").Logger()}
}

// StartTrade opens a pending trade record. A trade already open is
// replaced with a warning — the orchestrator is expected to close before
// opening another.
func (t *Tracker) StartTrade(side position.Side, entryPrice, size, leverage float64, openedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.log.Warn().Msg("trade stats: starting a new trade while one was already pending")
	}
	t.pending = &Trade{Side: side, EntryPrice: entryPrice, Size: size, Leverage: leverage, OpenedAt: openedAt, Open: true}
}

// CloseTrade finalizes the pending trade. Returns an error if no trade
// was pending.
func (t *Tracker) CloseTrade(exitPrice float64, reason string, closedAt time.Time) (Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return Trade{}, fmt.Errorf("stats: close trade: no pending trade")
	}

	tr := *t.pending
	tr.ExitPrice = exitPrice
	tr.Reason = reason
	tr.ClosedAt = closedAt
	tr.Open = false

	priceDiff := exitPrice - tr.EntryPrice
	if tr.Side == position.Short {
		priceDiff = tr.EntryPrice - exitPrice
	}
	tr.PnL = priceDiff * tr.Size
	if tr.EntryPrice != 0 {
		tr.PnLPct = priceDiff / tr.EntryPrice * 100 * tr.Leverage
	}

	t.closed = append(t.closed, tr)
	t.pending = nil

	t.log.Info().
		Str("side", tr.Side.String()).
		Float64("pnl", tr.PnL).
		Float64("pnl_pct", tr.PnLPct).
		Str("reason", reason).
		Msg("trade stats: trade closed")

	return tr, nil
}

// Pending reports the currently open trade, if any.
func (t *Tracker) Pending() (Trade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return Trade{}, false
	}
	return *t.pending, true
}

// Closed returns a copy of all closed trades.
func (t *Tracker) Closed() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Trade, len(t.closed))
	copy(out, t.closed)
	return out
}

// Summary computes the rolling aggregate metrics over all closed trades.
func (t *Tracker) Summary() Aggregates {
	t.mu.Lock()
	defer t.mu.Unlock()

	var agg Aggregates
	agg.TotalTrades = len(t.closed)
	if agg.TotalTrades == 0 {
		return agg
	}

	var sumWin, sumLoss float64
	runningPnL := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, tr := range t.closed {
		agg.TotalPnL += tr.PnL
		switch {
		case tr.PnL > 0:
			agg.Wins++
			sumWin += tr.PnL
			if tr.PnL > agg.LargestWin {
				agg.LargestWin = tr.PnL
			}
		case tr.PnL < 0:
			agg.Losses++
			sumLoss += -tr.PnL
			if tr.PnL < agg.LargestLoss {
				agg.LargestLoss = tr.PnL
			}
		}

		runningPnL += tr.PnL
		if runningPnL > peak {
			peak = runningPnL
		}
		if drawdown := peak - runningPnL; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	agg.MaxDrawdown = maxDrawdown

	agg.WinRate = float64(agg.Wins) / float64(agg.TotalTrades) * 100

	if agg.Wins > 0 {
		agg.AvgWin = sumWin / float64(agg.Wins)
	}
	if agg.Losses > 0 {
		agg.AvgLoss = sumLoss / float64(agg.Losses)
	}

	switch {
	case agg.Losses == 0 && agg.Wins > 0:
		agg.ProfitFactor = math.Inf(1)
	case agg.Wins == 0:
		agg.ProfitFactor = 0
	default:
		agg.ProfitFactor = (agg.AvgWin * float64(agg.Wins)) / (agg.AvgLoss * float64(agg.Losses))
	}

	return agg
}
