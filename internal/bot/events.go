package bot

import (
	"fmt"
	"time"

	"binance-trading-bot/internal/engine"
)

// EventKind discriminates the orchestrator's public event stream.
type EventKind string

const (
	EventSignal   EventKind = "signal"
	EventPosition EventKind = "position"
	EventLog      EventKind = "log"
	EventStop     EventKind = "stop"
)

// Event is one entry on the orchestrator's public event channel. Data
// holds the kind-specific payload: an engine.Signal for EventSignal, a
// position.LocalPositionState for EventPosition, nil otherwise.
type Event struct {
	Kind    EventKind
	Message string
	At      time.Time
	Data    interface{}
}

// Events returns the orchestrator's public event stream. The channel is
// buffered; a slow consumer causes events to be dropped, never to block
// the trading loop.
func (b *Bot) Events() <-chan Event {
	return b.events
}

func (b *Bot) publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.log.Warn().Str("kind", string(ev.Kind)).Msg("bot: event channel full, dropping event")
	}
}

func (b *Bot) emitLog(msg string) {
	b.log.Info().Msg(msg)
	b.publish(Event{Kind: EventLog, Message: msg, At: time.Now()})
}

func (b *Bot) emitSignal(sig *engine.Signal) {
	msg := fmt.Sprintf("signal: %s (%s)", sig.Side, sig.Reason)
	b.log.Info().Str("side", sig.Side.String()).Str("reason", string(sig.Reason)).Msg("signal")
	b.publish(Event{Kind: EventSignal, Message: msg, At: time.Now(), Data: *sig})
}

func (b *Bot) emitPosition(msg string) {
	b.log.Info().Msg(msg)
	b.publish(Event{Kind: EventPosition, Message: msg, At: time.Now(), Data: b.posMgr.State()})
}
