// Package exchange implements the two external collaborators the
// orchestrator consumes: an asynchronous tick feed over a WebSocket
// stream, and a periodic REST poller for position/balance snapshots.
// Reconnection, heartbeat, and message parsing live entirely here; the
// core only ever sees bar.Tick values, position.RestSnapshot values, and
// a USDT balance float.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"binance-trading-bot/internal/bar"
)

const (
	reconnectDelay = 5 * time.Second
	readErrorDelay = 3 * time.Second
)

// aggTradeMessage is the subset of Binance's aggTrade stream payload the
// core needs.
type aggTradeMessage struct {
	EventTime int64  `json:"E"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
}

// TickFeed streams aggregated-trade ticks for one symbol over a
// reconnecting WebSocket connection.
type TickFeed struct {
	log zerolog.Logger
	url string

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	ticks chan bar.Tick
	errs  chan error
}

// NewTickFeed constructs a tick feed against streamURL, the fully
// formed WebSocket URL for the symbol's aggTrade stream (e.g.
// "wss://fstream.binance.com/ws/btcusdt@aggTrade").
func NewTickFeed(streamURL string, logger zerolog.Logger) *TickFeed {
	return &TickFeed{
		log:   logger.With().Str("component", "tick-feed").Logger(),
		url:   streamURL,
		ticks: make(chan bar.Tick, 256),
		errs:  make(chan error, 16),
	}
}

// Ticks returns the channel of parsed ticks.
func (f *TickFeed) Ticks() <-chan bar.Tick { return f.ticks }

// Errors returns the channel of transient read/connect errors. The feed
// reconnects on its own; the core only logs these.
func (f *TickFeed) Errors() <-chan error { return f.errs }

// Start begins the reconnecting read loop in a background goroutine. It
// returns immediately; call Stop to terminate it.
func (f *TickFeed) Start(ctx context.Context) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.stop = make(chan struct{})
	f.mu.Unlock()

	go f.loop(ctx)
}

// Stop terminates the read loop.
func (f *TickFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.stop)
}

func (f *TickFeed) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *TickFeed) loop(ctx context.Context) {
	for f.isRunning() {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.log.Warn().Err(err).Msg("tick feed: connect failed, retrying")
			f.emitErr(err)
			if !f.sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		f.log.Info().Msg("tick feed: connected")
		f.readLoop(ctx, conn)
		conn.Close()

		if !f.isRunning() {
			return
		}
		f.log.Warn().Msg("tick feed: connection lost, reconnecting")
		if !f.sleep(ctx, readErrorDelay) {
			return
		}
	}
}

func (f *TickFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.emitErr(fmt.Errorf("tick feed: read: %w", err))
			}
			return
		}

		tick, err := parseAggTrade(data)
		if err != nil {
			f.emitErr(err)
			continue
		}
		select {
		case f.ticks <- tick:
		case <-ctx.Done():
			return
		}
	}
}

func (f *TickFeed) emitErr(err error) {
	select {
	case f.errs <- err:
	default:
	}
}

func (f *TickFeed) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-f.stop:
		return false
	}
}

func parseAggTrade(data []byte) (bar.Tick, error) {
	var msg aggTradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return bar.Tick{}, fmt.Errorf("tick feed: parse: %w", err)
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return bar.Tick{}, fmt.Errorf("tick feed: parse price: %w", err)
	}
	size, err := strconv.ParseFloat(msg.Quantity, 64)
	if err != nil {
		return bar.Tick{}, fmt.Errorf("tick feed: parse quantity: %w", err)
	}
	return bar.Tick{Timestamp: msg.EventTime, Price: price, Size: size}, nil
}
