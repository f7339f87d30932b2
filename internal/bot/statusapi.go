package bot

import (
	"fmt"
	"time"

	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/stats"
	"binance-trading-bot/internal/statusapi"
)

// The methods below satisfy statusapi.BotAPI, letting the status/control
// HTTP surface drive the orchestrator without depending on its internals.

// Pause suspends signal-driven entries and flips; protective exits and
// reconciliation keep running.
func (b *Bot) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
	b.emitLog("control: trading paused by operator")
}

// Resume lifts a prior Pause.
func (b *Bot) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
	b.emitLog("control: trading resumed by operator")
}

// ForceClose closes the open position immediately, bypassing the signal
// pipeline. Returns an error if nothing is open.
func (b *Bot) ForceClose(reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.posMgr.State().Side == position.Flat {
		return fmt.Errorf("bot: no open position to close")
	}
	b.closePosition(reason, &executor.CloseMeta{})
	return nil
}

// Status returns a point-in-time snapshot of the orchestrator.
func (b *Bot) Status() statusapi.Status {
	b.mu.Lock()
	frozen := b.frozen
	paused := b.paused
	lastBarClose := b.lastBarCloseTime
	b.mu.Unlock()

	engineName := "trend"
	if b.useHybrid {
		engineName = "hybrid"
	}

	var lastClose time.Time
	if lastBarClose > 0 {
		lastClose = time.UnixMilli(lastBarClose)
	}

	return statusapi.Status{
		Symbol:       b.symbol,
		DryRun:       b.dryRun,
		Paused:       paused,
		Frozen:       frozen,
		Engine:       engineName,
		Position:     b.posMgr.State(),
		Aggregates:   b.tstats.Summary(),
		LastBarClose: lastClose,
	}
}

// RecentTrades returns up to limit of the most recently closed trades.
func (b *Bot) RecentTrades(limit int) []stats.Trade {
	closed := b.tstats.Closed()
	if limit <= 0 || len(closed) <= limit {
		return closed
	}
	return closed[len(closed)-limit:]
}
