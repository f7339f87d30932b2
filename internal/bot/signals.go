package bot

import (
	"context"
	"fmt"
	"time"

	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/engine"
	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/position"
)

// handleBarClose runs the gate sequence documented for a closing bar:
// monotonic, warmup, freeze, pause, hybrid exit-first, signal
// evaluation, dedup, then emit + apply. Called with mu held.
func (b *Bot) handleBarClose(candle *bar.SyntheticBar) {
	if candle.EndTime <= b.lastBarCloseTime {
		return
	}
	b.lastBarCloseTime = candle.EndTime
	b.barCount++

	if b.barCount <= warmupBars {
		if b.barCount == warmupBars {
			b.emitLog("warmup: window complete, signal evaluation begins next bar")
		}
		return
	}

	now := time.Now()
	if b.frozen {
		if now.Before(b.freezeUntil) {
			return
		}
		b.frozen = false
		b.emitLog("reconciliation: unfreezing trading")
	}

	if b.paused {
		return
	}

	if b.useHybrid && b.posMgr.State().Side != position.Flat {
		if exit, reason := b.hybrid.CheckExit(candle); exit {
			b.closePosition(reason, &executor.CloseMeta{Close: &candle.Close})
			return
		}
	}

	var sig *engine.Signal
	if b.useHybrid {
		sig = b.hybrid.OnBarClose(candle)
	} else {
		sig = b.trend.OnBarClose(candle)
	}
	if sig == nil {
		return
	}

	key := fmt.Sprintf("%s-%d", sig.Reason, candle.EndTime)
	if _, seen := b.processedSet[key]; seen {
		return
	}
	b.processedSet[key] = struct{}{}
	b.processedOrder = append(b.processedOrder, key)
	if len(b.processedOrder) > maxProcessedSignals {
		oldest := b.processedOrder[0]
		b.processedOrder = b.processedOrder[1:]
		delete(b.processedSet, oldest)
	}

	b.emitSignal(sig)
	b.persistWarmState()
	b.applySignal(sig, candle)
}

// applySignal runs the regime gate, same-side/flip rules, and either
// flips or enters. Called with mu held.
func (b *Bot) applySignal(sig *engine.Signal, candle *bar.SyntheticBar) {
	if b.useHybrid && b.strategy.RequireTrendingMarket {
		if !b.hybrid.ShouldAllowTrading(b.strategy.ADXThreshold) {
			b.emitLog("regime gate: market not trending, signal skipped")
			return
		}
	}

	side := engineSideToPosition(sig.Side)
	state := b.posMgr.State()
	if state.Side == side {
		return
	}

	now := time.Now()
	if !b.flipBudgetAllows(now) {
		b.emitLog("flip budget: too many entries in the last hour, signal skipped")
		return
	}

	if state.Side != position.Flat {
		if b.barCount-b.positionOpenedAt < minHoldBars {
			b.emitLog("minimum hold: position too young to flip, signal skipped")
			return
		}
		reason := "flip-short"
		if side == position.Long {
			reason = "flip-long"
		}
		b.closePosition(reason, &executor.CloseMeta{Close: &candle.Close})
	}

	b.enterPosition(side, b.computeOrderSize(), candle.Close, now)
}

func (b *Bot) computeOrderSize() float64 {
	if b.risk.PositionSizePct <= 0 {
		return b.risk.MaxPositionSize
	}

	b.balanceMu.RLock()
	balance := b.usdtBalance
	b.balanceMu.RUnlock()

	raw := balance * b.risk.PositionSizePct / 100 * 0.7 * float64(b.risk.MaxLeverage)
	size := raw
	if size > b.risk.MaxPositionSize {
		size = b.risk.MaxPositionSize
	}
	return clamp(size, 5, 500)
}

func (b *Bot) flipBudgetAllows(now time.Time) bool {
	cutoff := now.Add(-time.Hour)
	kept := b.flipTimestamps[:0]
	for _, ts := range b.flipTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.flipTimestamps = kept
	return len(b.flipTimestamps) < b.risk.MaxFlipsPerHour
}

// enterPosition places the entry order, then optimistically updates
// every piece of local state an exchange confirmation would otherwise
// drive. Called with mu held.
func (b *Bot) enterPosition(side position.Side, size, price float64, at time.Time) {
	leverage := b.risk.MaxLeverage

	if !b.dryRun {
		required := size / float64(leverage)
		b.balanceMu.RLock()
		balance := b.usdtBalance
		b.balanceMu.RUnlock()
		if balance < required {
			b.emitLog(fmt.Sprintf("balance check: insufficient balance for entry (need %.2f usdt, have %.2f)", required, balance))
			return
		}
	}

	order := executor.Order{Side: side, Size: size, Price: price, Leverage: leverage, Timestamp: at}

	ctx := context.Background()
	var err error
	if side == position.Long {
		err = b.exec.EnterLong(ctx, order)
	} else {
		err = b.exec.EnterShort(ctx, order)
	}
	if err != nil {
		if executor.IsBalanceError(err) {
			b.emitLog(fmt.Sprintf("executor: insufficient balance, entry skipped: %v", err))
			return
		}
		b.emitLog(fmt.Sprintf("executor: entry failed: %v", err))
		return
	}

	orderID := fmt.Sprintf("order-%d", at.UnixNano())
	tracked := b.tracker.TrackOrder(orderID, side, size, price, at)

	b.posMgr.Open(side, size, price, at, tracked.ID)
	b.positionOpenedAt = b.barCount
	b.highestPrice = price
	b.lowestPrice = price
	b.haveExtrema = true

	if b.useHybrid {
		s := engineSideFromPosition(side)
		b.hybrid.SetPositionSide(&s)
	}

	b.tstats.StartTrade(side, price, size, float64(leverage), at)
	b.flipTimestamps = append(b.flipTimestamps, at)

	b.emitPosition(fmt.Sprintf("position: entered %s %.4f @ %.2f", side, size, price))
	b.persistWarmState()
}

// closePosition closes the open position at the given executor-level
// reason, updates stats/CSV/history, and resets trailing-exit state.
// No-op if already flat. Called with mu held.
func (b *Bot) closePosition(reason string, meta *executor.CloseMeta) {
	state := b.posMgr.State()
	if state.Side == position.Flat {
		return
	}

	exitPrice := meta.ExitPrice(state.AvgEntry)

	ctx := context.Background()
	if err := b.exec.ClosePosition(ctx, reason, meta); err != nil {
		if executor.IsBalanceError(err) {
			b.emitLog(fmt.Sprintf("executor: balance error on close, skipped: %v", err))
			return
		}
		b.emitLog(fmt.Sprintf("executor: close failed: %v", err))
		return
	}

	trade, err := b.tstats.CloseTrade(exitPrice, reason, time.Now())
	if err != nil {
		b.emitLog(fmt.Sprintf("stats: close trade: %v", err))
	} else {
		tradeID := fmt.Sprintf("trade-%d", trade.ClosedAt.UnixNano())
		if b.csv != nil {
			if err := b.csv.Append(tradeID, trade); err != nil {
				b.emitLog(fmt.Sprintf("csv log: append failed: %v", err))
			}
		}
		if b.history != nil {
			if err := b.history.Record(ctx, tradeID, b.symbol, trade); err != nil {
				b.emitLog(fmt.Sprintf("trade history: record failed: %v", err))
			}
		}
	}

	if b.useHybrid {
		b.hybrid.SetPositionSide(nil)
	}
	b.haveExtrema = false
	b.posMgr.Close(time.Now())
	b.emitPosition(fmt.Sprintf("position: closed (%s)", reason))
	b.persistWarmState()
}
