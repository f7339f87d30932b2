package stats

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

func newTestTracker() *Tracker {
	return NewTracker(zerolog.Nop())
}

func TestCloseTradeComputesLongPnL(t *testing.T) {
	tr := newTestTracker()
	tr.StartTrade(position.Long, 100, 10, 2, time.Unix(0, 0))

	trade, err := tr.CloseTrade(110, "take-profit", time.Unix(60, 0))
	if err != nil {
		t.Fatalf("CloseTrade: %v", err)
	}
	if trade.PnL != 100 {
		t.Fatalf("expected pnl 100, got %v", trade.PnL)
	}
	if trade.PnLPct != 20 {
		t.Fatalf("expected pnlPct 20, got %v", trade.PnLPct)
	}
}

func TestCloseTradeComputesShortPnL(t *testing.T) {
	tr := newTestTracker()
	tr.StartTrade(position.Short, 100, 10, 1, time.Unix(0, 0))

	trade, err := tr.CloseTrade(90, "stop-loss", time.Unix(60, 0))
	if err != nil {
		t.Fatalf("CloseTrade: %v", err)
	}
	if trade.PnL != 100 {
		t.Fatalf("expected pnl 100 on a profitable short, got %v", trade.PnL)
	}
}

func TestCloseTradeWithoutPendingErrors(t *testing.T) {
	tr := newTestTracker()
	if _, err := tr.CloseTrade(100, "take-profit", time.Unix(0, 0)); err == nil {
		t.Fatalf("expected error closing with no pending trade")
	}
}

func TestSummaryProfitFactorEdgeCases(t *testing.T) {
	tr := newTestTracker()

	// No trades at all.
	if s := tr.Summary(); s.TotalTrades != 0 || s.ProfitFactor != 0 {
		t.Fatalf("expected zero-value summary on no trades, got %+v", s)
	}

	// All wins, no losses -> profit factor is +Inf.
	tr.StartTrade(position.Long, 100, 1, 1, time.Unix(0, 0))
	tr.CloseTrade(110, "take-profit", time.Unix(1, 0))
	s := tr.Summary()
	if !isInf(s.ProfitFactor) {
		t.Fatalf("expected +Inf profit factor with no losses, got %v", s.ProfitFactor)
	}

	// Add a loss: profit factor becomes finite.
	tr.StartTrade(position.Long, 100, 1, 1, time.Unix(2, 0))
	tr.CloseTrade(90, "stop-loss", time.Unix(3, 0))
	s = tr.Summary()
	if isInf(s.ProfitFactor) || s.ProfitFactor <= 0 {
		t.Fatalf("expected a finite positive profit factor, got %v", s.ProfitFactor)
	}
	if s.TotalTrades != 2 || s.Wins != 1 || s.Losses != 1 {
		t.Fatalf("unexpected aggregate counts: %+v", s)
	}
}

func TestSummaryAllLossesProfitFactorZero(t *testing.T) {
	tr := newTestTracker()
	tr.StartTrade(position.Long, 100, 1, 1, time.Unix(0, 0))
	tr.CloseTrade(90, "stop-loss", time.Unix(1, 0))

	s := tr.Summary()
	if s.ProfitFactor != 0 {
		t.Fatalf("expected profit factor 0 with no wins, got %v", s.ProfitFactor)
	}
}

func TestSummaryMaxDrawdownTracksPeakToTrough(t *testing.T) {
	tr := newTestTracker()
	tr.StartTrade(position.Long, 100, 1, 1, time.Unix(0, 0))
	tr.CloseTrade(120, "take-profit", time.Unix(1, 0)) // +20, peak=20
	tr.StartTrade(position.Long, 100, 1, 1, time.Unix(2, 0))
	tr.CloseTrade(95, "stop-loss", time.Unix(3, 0)) // -5, running=15, drawdown=5

	s := tr.Summary()
	if s.MaxDrawdown != 5 {
		t.Fatalf("expected max drawdown 5, got %v", s.MaxDrawdown)
	}
}

func isInf(v float64) bool {
	return v > 1e300
}
