package ordertracker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

func newTestTracker() *Tracker {
	return NewTracker(zerolog.Nop())
}

func TestTrackOrderAndConfirmByPositionChange(t *testing.T) {
	tr := newTestTracker()
	now := time.Unix(0, 0)
	tr.TrackOrder("order-1", position.Long, 100, 50000, now)

	po, ok := tr.ConfirmByPositionChange(position.Long, 100.00005, now.Add(time.Second))
	if !ok {
		t.Fatalf("expected confirmation within tolerance")
	}
	if po.ID != "order-1" || !po.Confirmed {
		t.Fatalf("expected order-1 confirmed, got %+v", po)
	}
}

func TestConfirmByPositionChangeRequiresSideMatch(t *testing.T) {
	tr := newTestTracker()
	now := time.Unix(0, 0)
	tr.TrackOrder("order-1", position.Long, 100, 50000, now)

	if _, ok := tr.ConfirmByPositionChange(position.Short, 100, now); ok {
		t.Fatalf("did not expect confirmation across mismatched side")
	}
}

func TestConfirmByPositionChangeRequiresSizeWithinTolerance(t *testing.T) {
	tr := newTestTracker()
	now := time.Unix(0, 0)
	tr.TrackOrder("order-1", position.Long, 100, 50000, now)

	if _, ok := tr.ConfirmByPositionChange(position.Long, 100.5, now); ok {
		t.Fatalf("did not expect confirmation outside size tolerance")
	}
}

func TestExpireStalePurgesUnconfirmedAfter30Seconds(t *testing.T) {
	tr := newTestTracker()
	start := time.Unix(0, 0)
	tr.TrackOrder("order-1", position.Long, 100, 50000, start)

	expired := tr.ExpireStale(start.Add(29 * time.Second))
	if len(expired) != 0 {
		t.Fatalf("expected no expiry before 30s, got %v", expired)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected order still tracked, got %d", tr.Len())
	}

	expired = tr.ExpireStale(start.Add(30 * time.Second))
	if len(expired) != 1 || expired[0] != "order-1" {
		t.Fatalf("expected order-1 expired at 30s, got %v", expired)
	}
	if tr.Len() != 0 {
		t.Fatalf("expected tracker empty after expiry, got %d", tr.Len())
	}
}

func TestExpireStaleSkipsConfirmedOrders(t *testing.T) {
	tr := newTestTracker()
	start := time.Unix(0, 0)
	tr.TrackOrder("order-1", position.Long, 100, 50000, start)
	tr.ConfirmByPositionChange(position.Long, 100, start)

	expired := tr.ExpireStale(start.Add(time.Hour))
	if len(expired) != 0 {
		t.Fatalf("expected confirmed order to survive expiry sweep, got %v", expired)
	}
}

func TestClearAll(t *testing.T) {
	tr := newTestTracker()
	tr.TrackOrder("order-1", position.Long, 100, 50000, time.Unix(0, 0))
	tr.ClearAll()
	if tr.Len() != 0 {
		t.Fatalf("expected tracker cleared, got %d", tr.Len())
	}
}
