// Package ordertracker implements pending-order bookkeeping (C8): orders
// are tracked from placement until either a position-change observation
// confirms them or they expire unconfirmed.
package ordertracker

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

// unconfirmedExpiry is how long a pending order may go without a
// confirming position-change observation before it is purged.
const unconfirmedExpiry = 30 * time.Second

const sizeTolerance = 1e-4

// PendingOrder is a tracked order awaiting confirmation.
type PendingOrder struct {
	ID          string
	TraceID     string
	Side        position.Side
	Size        float64
	Price       float64
	Timestamp   time.Time
	Confirmed   bool
	ConfirmedAt time.Time
}

// Tracker holds pending orders keyed by ID.
type Tracker struct {
	mu     sync.Mutex
	log    zerolog.Logger
	orders map[string]*PendingOrder
}

// NewTracker constructs an empty order tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		log:    logger.With().Str("component", "order-tracker").Logger(),
		orders: make(map[string]*PendingOrder),
	}
}

// TrackOrder registers a newly-placed order under id, to be confirmed by
// a later position-change observation or expired after 30s.
func (t *Tracker) TrackOrder(id string, side position.Side, size, price float64, at time.Time) *PendingOrder {
	t.mu.Lock()
	defer t.mu.Unlock()

	po := &PendingOrder{
		ID:        id,
		TraceID:   uuid.NewString(),
		Side:      side,
		Size:      size,
		Price:     price,
		Timestamp: at,
	}
	t.orders[id] = po
	return po
}

// ConfirmByPositionChange finds the first (earliest-tracked) unconfirmed
// order matching side and size (within tolerance) and marks it confirmed.
func (t *Tracker) ConfirmByPositionChange(side position.Side, observedSize float64, at time.Time) (*PendingOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var match *PendingOrder
	for _, po := range t.orders {
		if po.Confirmed || po.Side != side {
			continue
		}
		if math.Abs(po.Size-observedSize) >= sizeTolerance {
			continue
		}
		if match == nil || po.Timestamp.Before(match.Timestamp) {
			match = po
		}
	}
	if match == nil {
		return nil, false
	}
	match.Confirmed = true
	match.ConfirmedAt = at
	return match, true
}

// ExpireStale purges unconfirmed orders at least 30s old, logging a
// warning for each, and returns their ids.
func (t *Tracker) ExpireStale(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for id, po := range t.orders {
		if po.Confirmed {
			continue
		}
		if now.Sub(po.Timestamp) >= unconfirmedExpiry {
			expired = append(expired, id)
			delete(t.orders, id)
		}
	}
	for _, id := range expired {
		t.log.Warn().Str("order_id", id).Msg("order tracker: unconfirmed order expired")
	}
	return expired
}

// ClearAll drops all tracked orders, e.g. when reconciliation overrides
// local state to flat.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = make(map[string]*PendingOrder)
}

// Get returns the tracked order for id, if any.
func (t *Tracker) Get(id string) (*PendingOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	po, ok := t.orders[id]
	return po, ok
}

// Len reports the number of currently tracked orders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}
