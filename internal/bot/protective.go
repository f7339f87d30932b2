package bot

import (
	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/position"
)

// runProtectiveExits evaluates every closed bar against the protective
// exits, strictly in order: trailing stop (hybrid only), emergency
// stop, regular stop-loss, take-profit. The first one that fires closes
// the position and skips the rest. Called with mu held, before
// handleBarClose.
func (b *Bot) runProtectiveExits(candle *bar.SyntheticBar) {
	state := b.posMgr.State()
	if state.Side == position.Flat {
		b.haveExtrema = false
		return
	}

	if !b.haveExtrema {
		b.highestPrice = candle.Close
		b.lowestPrice = candle.Close
		b.haveExtrema = true
	}
	if state.Side == position.Long {
		if candle.Close > b.highestPrice {
			b.highestPrice = candle.Close
		}
	} else if candle.Close < b.lowestPrice {
		b.lowestPrice = candle.Close
	}

	entry := state.AvgEntry
	if entry == 0 {
		return
	}

	if b.useHybrid {
		if unrealizedPct(state.Side, entry, candle.Close) > 0.5 {
			if trailingStopHit(state.Side, candle.Close, b.highestPrice, b.lowestPrice) {
				b.closePosition("trailing-stop", &executor.CloseMeta{Close: &candle.Close})
				return
			}
		}
	}

	if b.useHybrid || b.risk.UseStopLoss {
		if thresholdBreached(state.Side, entry, candle.Close, b.risk.EmergencyStopLoss) {
			b.closePosition("emergency-stop", &executor.CloseMeta{Close: &candle.Close})
			return
		}
	}

	if b.risk.UseStopLoss && b.risk.StopLossPct > 0 {
		if thresholdBreached(state.Side, entry, candle.Close, b.risk.StopLossPct) {
			b.closePosition("stop-loss", &executor.CloseMeta{Close: &candle.Close})
			return
		}
	}

	if b.risk.TakeProfitPct > 0 {
		if takeProfitReached(state.Side, entry, candle.Close, b.risk.TakeProfitPct) {
			b.closePosition("take-profit", &executor.CloseMeta{Close: &candle.Close})
			return
		}
	}
}

const trailingStopPct = 0.005

func trailingStopHit(side position.Side, price, highest, lowest float64) bool {
	if side == position.Long {
		return price <= highest*(1-trailingStopPct)
	}
	return price >= lowest*(1+trailingStopPct)
}

func unrealizedPct(side position.Side, entry, price float64) float64 {
	if side == position.Long {
		return (price - entry) / entry * 100
	}
	return (entry - price) / entry * 100
}

// thresholdBreached reports whether price has moved pct% against entry,
// used for both the emergency stop and the regular stop-loss (they
// share the same adverse-move shape, just different thresholds).
func thresholdBreached(side position.Side, entry, price, pct float64) bool {
	if pct <= 0 {
		return false
	}
	if side == position.Long {
		return price <= entry*(1-pct/100)
	}
	return price >= entry*(1+pct/100)
}

func takeProfitReached(side position.Side, entry, price, pct float64) bool {
	if side == position.Long {
		return price >= entry*(1+pct/100)
	}
	return price <= entry*(1-pct/100)
}
