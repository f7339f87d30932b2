package bot

import (
	"time"

	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/warmstate"
)

// loadWarmState restores the last bar-close time and open position from
// the warm store, if one is configured and holds a snapshot recent
// enough to resume from. Called once, before Run's event loop starts.
func (b *Bot) loadWarmState() {
	if b.warm == nil {
		return
	}
	state, err := b.warm.Load(time.Now())
	if err != nil {
		b.log.Warn().Err(err).Msg("warm state: load failed, starting cold")
		return
	}
	if state == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastBarCloseTime = state.LastBarCloseTime
	if state.Position.Side != position.Flat {
		b.posMgr.Open(state.Position.Side, state.Position.Size, state.Position.AvgEntry, time.Now(), "")
		b.highestPrice = state.Position.AvgEntry
		b.lowestPrice = state.Position.AvgEntry
		b.haveExtrema = true
		if b.useHybrid {
			s := engineSideFromPosition(state.Position.Side)
			b.hybrid.SetPositionSide(&s)
		}
	}
	b.log.Info().
		Int64("last_bar_close", b.lastBarCloseTime).
		Str("side", state.Position.Side.String()).
		Msg("warm state: resumed")
}

// persistWarmState saves the current position and last bar-close time.
// Called after any position, signal, or reconciliation event. Best
// effort: a save failure is logged, never fatal. Called with mu held.
func (b *Bot) persistWarmState() {
	if b.warm == nil {
		return
	}
	state := b.posMgr.State()
	ws := warmstate.State{
		Position: warmstate.PositionSnapshot{
			Side:     state.Side,
			Size:     state.Size,
			AvgEntry: state.AvgEntry,
		},
		LastBarCloseTime: b.lastBarCloseTime,
		Timestamp:        time.Now().Unix(),
	}
	if err := b.warm.Save(ws); err != nil {
		b.log.Warn().Err(err).Msg("warm state: save failed")
	}
}
