// Package position implements the local/exchange position reconciliation
// state machine (C7): a local view of the open position, kept honest
// against periodic exchange snapshots with tolerance-based matching and
// two override rules.
package position

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Side is the directional state of a position, including Flat.
type Side int

const (
	Flat Side = iota
	Long
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// maxReconciliationFailures is the number of consecutive reconciliation
// failures after which the caller should freeze new entries.
const maxReconciliationFailures = 2

const (
	sizeTolerance  = 1e-4
	entryTolerance = 0.01
)

// RestSnapshot is the raw exchange position snapshot as polled.
type RestSnapshot struct {
	PositionAmt      string
	EntryPrice       float64
	MarkPrice        float64
	UnrealizedProfit float64
	Leverage         float64
	Symbol           string
}

// LocalPositionState is the orchestrator's view of the open position.
type LocalPositionState struct {
	Size           float64
	Side           Side
	AvgEntry       float64
	UnrealizedPnl  float64
	LastUpdate     time.Time
	PendingOrderID string
	HasPending     bool
}

// Manager owns the local position state and the reconciliation-failure
// counter that feeds the orchestrator's freeze decision.
type Manager struct {
	mu     sync.Mutex
	log    zerolog.Logger
	state  LocalPositionState
	failed int
}

// NewManager constructs a flat position manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{log: logger.With().Str("component", "position-manager").Logger()}
}

// State returns a copy of the current local position state.
func (m *Manager) State() LocalPositionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FailureCount reports the current consecutive reconciliation-failure count.
func (m *Manager) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// FreezeEligible reports whether the failure counter has reached the
// threshold at which the orchestrator should suspend new entries.
func (m *Manager) FreezeEligible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed >= maxReconciliationFailures
}

// Open sets the local state to an optimistic new position, e.g. right
// after the executor confirms an entry. It does not touch the failure
// counter — that is reserved for reconciliation outcomes.
func (m *Manager) Open(side Side, size, entryPrice float64, at time.Time, pendingOrderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = LocalPositionState{
		Size: size, Side: side, AvgEntry: entryPrice, LastUpdate: at,
		PendingOrderID: pendingOrderID, HasPending: pendingOrderID != "",
	}
}

// Close sets the local state to flat.
func (m *Manager) Close(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = LocalPositionState{Side: Flat, LastUpdate: at}
}

// ClearPendingOrder drops the pending-order marker, leaving size/side intact.
func (m *Manager) ClearPendingOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.PendingOrderID = ""
	m.state.HasPending = false
}

// ParseRestSnapshot converts the raw exchange strings into the signed
// size/side form used for reconciliation.
func ParseRestSnapshot(s RestSnapshot) (size float64, side Side, err error) {
	amt, err := strconv.ParseFloat(s.PositionAmt, 64)
	if err != nil {
		return 0, Flat, fmt.Errorf("position: parse positionAmt %q: %w", s.PositionAmt, err)
	}
	switch {
	case amt > 0:
		return amt, Long, nil
	case amt < 0:
		return -amt, Short, nil
	default:
		return 0, Flat, nil
	}
}

// UpdateFromRest reconciles the local state against a polled exchange
// snapshot per the documented algorithm: exact match overwrites and
// resets failures; two override rules trust the exchange on a flat/open
// mismatch; anything else increments the failure counter and returns
// false.
func (m *Manager) UpdateFromRest(rest RestSnapshot, now time.Time) (bool, error) {
	restSize, restSide, err := ParseRestSnapshot(rest)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	local := m.state
	sizeMatch := math.Abs(restSize-local.Size) < sizeTolerance
	sideMatch := restSide == local.Side

	bothFlat := restSide == Flat && local.Side == Flat
	reconciled := false
	switch {
	case bothFlat:
		reconciled = sizeMatch && sideMatch
	default:
		entryMatch := rest.EntryPrice == 0 ||
			(local.AvgEntry != 0 && math.Abs(rest.EntryPrice-local.AvgEntry)/rest.EntryPrice < entryTolerance)
		reconciled = sizeMatch && sideMatch && entryMatch
	}

	switch {
	case reconciled:
		m.overwrite(restSize, restSide, rest, now)
		m.failed = 0
		return true, nil

	case restSide == Flat && local.Side != Flat:
		m.log.Warn().Str("local_side", local.Side.String()).Msg("position: exchange flat, local non-flat — trusting exchange")
		m.overwrite(restSize, restSide, rest, now)
		m.failed = 0
		return true, nil

	case restSide != Flat && local.Side == Flat:
		m.log.Warn().Str("rest_side", restSide.String()).Msg("position: exchange non-flat, local flat — trusting exchange")
		m.overwrite(restSize, restSide, rest, now)
		m.failed = 0
		return true, nil

	default:
		m.failed++
		m.log.Warn().
			Int("failures", m.failed).
			Str("local_side", local.Side.String()).
			Str("rest_side", restSide.String()).
			Msg("position: reconciliation failed")
		return false, nil
	}
}

func (m *Manager) overwrite(size float64, side Side, rest RestSnapshot, now time.Time) {
	m.state = LocalPositionState{
		Size: size, Side: side, AvgEntry: rest.EntryPrice, UnrealizedPnl: rest.UnrealizedProfit, LastUpdate: now,
	}
}
