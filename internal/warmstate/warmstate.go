// Package warmstate persists the orchestrator's last bar-close time and
// position so a restart can resume instead of re-warming from scratch.
// Two interchangeable Store implementations are provided: a file-based
// one using atomic write-temp-then-rename, and a Redis-backed one.
package warmstate

import (
	"encoding/json"
	"time"

	"binance-trading-bot/internal/position"
)

// maxAge is how old a saved warm state may be before it is discarded as
// stale rather than resumed from.
const maxAge = time.Hour

// State is the persisted snapshot.
type State struct {
	Position         PositionSnapshot `json:"position"`
	LastBarCloseTime int64            `json:"lastBarCloseTime"`
	Timestamp        int64            `json:"timestamp"` // unix seconds, when this was saved
}

// PositionSnapshot is the serializable subset of LocalPositionState.
type PositionSnapshot struct {
	Side     position.Side `json:"side"`
	Size     float64       `json:"size"`
	AvgEntry float64       `json:"avgEntry"`
}

// Store loads and saves warm state. Load returns (nil, nil) when there
// is nothing usable to resume from (missing, corrupt, or stale).
type Store interface {
	Load(now time.Time) (*State, error)
	Save(state State) error
}

func isStale(savedAt int64, now time.Time) bool {
	saved := time.Unix(savedAt, 0)
	return now.Sub(saved) > maxAge
}

func marshal(state State) ([]byte, error) {
	return json.Marshal(state)
}

func unmarshal(data []byte) (State, error) {
	var s State
	err := json.Unmarshal(data, &s)
	return s, err
}
