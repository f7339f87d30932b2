package bot

import (
	"fmt"
	"time"

	"binance-trading-bot/internal/position"
)

// onPositionSnapshot feeds a polled exchange snapshot into the
// reconciliation state machine and applies its side effects: on success,
// clear or confirm the pending order tracker; on two consecutive
// failures, freeze new entries for freezeDuration.
func (b *Bot) onPositionSnapshot(snap position.RestSnapshot, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reconciled, err := b.posMgr.UpdateFromRest(snap, at)
	if err != nil {
		b.emitLog(fmt.Sprintf("reconciliation: snapshot parse error: %v", err))
		return
	}

	if reconciled {
		size, side, parseErr := position.ParseRestSnapshot(snap)
		if parseErr == nil {
			if side == position.Flat {
				b.tracker.ClearAll()
			} else {
				b.tracker.ConfirmByPositionChange(side, size, at)
			}
		}
		b.persistWarmState()
		return
	}

	if b.posMgr.FreezeEligible() && !b.frozen {
		b.frozen = true
		b.freezeUntil = at.Add(freezeDuration)
		b.emitLog("reconciliation: two consecutive failures, freezing trading for 60s")
		b.persistWarmState()
	}
}

func (b *Bot) onBalanceSnapshot(usdt float64) {
	b.balanceMu.Lock()
	b.usdtBalance = usdt
	b.balanceMu.Unlock()
}
