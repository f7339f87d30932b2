package engine

import (
	"testing"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/bar"
)

func testHybridConfig() HybridConfig {
	return HybridConfig{
		V1EMAFastLen:         8,
		V1EMAMidLen:          21,
		V1EMASlowLen:         48,
		V1EMAMicroFastLen:    3,
		V1EMAMicroSlowLen:    6,
		V1RSILength:          14,
		V1RSIMinLong:         42,
		V1RSIMaxShort:        58,
		MinBarsBetween:       3,
		MinMovePercent:       0.10,
		V2EMAFastLen:         5,
		V2EMAMidLen:          10,
		V2EMASlowLen:         20,
		V2RSILength:          7,
		RSIMomentumThreshold: 5,
		VolumeLookback:       10,
		VolumeMultiplier:     1.5,
		ADXLength:            5,
		ExitVolumeMultiplier: 0.7,
	}
}

func newTestHybrid(t *testing.T) *Hybrid {
	t.Helper()
	h, err := NewHybrid(testHybridConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHybrid: %v", err)
	}
	return h
}

func TestNewHybridRejectsBadLength(t *testing.T) {
	cfg := testHybridConfig()
	cfg.V1EMAFastLen = 0
	if _, err := NewHybrid(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for invalid V1 ema length")
	}
}

func TestMovePercentAgainstEntryPrice(t *testing.T) {
	if v := movePercent(100, 100.05); v >= 0.10 {
		t.Fatalf("expected move under threshold, got %v", v)
	}
	if v := movePercent(100, 100.15); v < 0.10 {
		t.Fatalf("expected move over threshold, got %v", v)
	}
}

func TestV1MoveFilterSuppressesSmallMoveAndAllowsLargeMove(t *testing.T) {
	h := newTestHybrid(t)
	h.v1.haveLongEntry = true
	h.v1.lastLongEntryPrice = 100.00

	if h.v1MoveOK(Long, 100.05) {
		t.Fatalf("expected 0.05%% move to be suppressed by a 0.10%% filter")
	}
	if !h.v1MoveOK(Long, 100.15) {
		t.Fatalf("expected 0.15%% move to pass a 0.10%% filter")
	}
}

func TestV1MoveFilterPassesWhenNoPriorEntry(t *testing.T) {
	h := newTestHybrid(t)
	if !h.v1MoveOK(Long, 100) || !h.v1MoveOK(Short, 100) {
		t.Fatalf("expected move filter to pass through before any entry is recorded")
	}
}

func TestV1BarsGate(t *testing.T) {
	h := newTestHybrid(t)
	h.v1.barsSinceLastSignal = 2
	if h.v1BarsOK() {
		t.Fatalf("expected bars gate to block at 2 < minBarsBetween(3)")
	}
	h.v1.barsSinceLastSignal = 3
	if !h.v1BarsOK() {
		t.Fatalf("expected bars gate to pass at 3 >= minBarsBetween(3)")
	}
}

func TestRegimeGateAllowsTradingWhenADXNotReady(t *testing.T) {
	h := newTestHybrid(t)
	if !h.ShouldAllowTrading(20) {
		t.Fatalf("expected trading allowed while ADX is not yet ready")
	}
}

func TestRegimeGateUsesADXThreshold(t *testing.T) {
	h := newTestHybrid(t)
	high, low, close := 100.0, 95.0, 98.0
	for i := 0; i < 2*h.cfg.ADXLength+5; i++ {
		high += 2
		low += 2
		close += 2
		h.OnBarClose(&bar.SyntheticBar{High: high, Low: low, Close: close, Open: close - 1, Volume: 10})
	}
	if !h.ShouldAllowTrading(1) {
		t.Fatalf("expected a strong sustained trend to read above a low ADX threshold")
	}
	if h.ShouldAllowTrading(1000) {
		t.Fatalf("expected an unreachable threshold to block trading")
	}
}

func TestExitDetectorNilWhenFlat(t *testing.T) {
	h := newTestHybrid(t)
	exit, reason := h.CheckExit(&bar.SyntheticBar{Close: 100, Volume: 1})
	if exit || reason != "" {
		t.Fatalf("expected no exit while flat, got exit=%v reason=%q", exit, reason)
	}
}

func TestExitDetectorRSIReversalForLong(t *testing.T) {
	h := newTestHybrid(t)
	long := Long
	h.positionSide = &long
	h.v2.rsiHistory = []float64{60, 55, 50} // last(50) < threeBack(60): adverse for a long
	h.v2.volumeRing = []float64{10, 10, 10}

	exit, reason := h.CheckExit(&bar.SyntheticBar{Volume: 10})
	if !exit || reason != "rsi-reversal" {
		t.Fatalf("expected rsi-reversal exit, got exit=%v reason=%q", exit, reason)
	}
}

func TestExitDetectorFlatteningWithVolumeDrop(t *testing.T) {
	h := newTestHybrid(t)
	short := Short
	h.positionSide = &short
	// Not adverse for a short (last <= threeBack), but flat (<2 move) and volume well below average.
	h.v2.rsiHistory = []float64{50, 49, 49.5}
	h.v2.volumeRing = []float64{10, 10, 10}

	exit, reason := h.CheckExit(&bar.SyntheticBar{Volume: 1})
	if !exit || reason != "rsi-flattening-volume-drop" {
		t.Fatalf("expected rsi-flattening-volume-drop exit, got exit=%v reason=%q", exit, reason)
	}
}

func TestExitDetectorNoExitWithoutEnoughHistory(t *testing.T) {
	h := newTestHybrid(t)
	long := Long
	h.positionSide = &long
	h.v2.rsiHistory = []float64{50, 48}

	exit, _ := h.CheckExit(&bar.SyntheticBar{Volume: 10})
	if exit {
		t.Fatalf("expected no exit decision before 3 RSI samples are available")
	}
}

func TestHybridOnBarCloseNeverReturnsBothSystems(t *testing.T) {
	h := newTestHybrid(t)
	price := 100.0
	for i := 0; i < 100; i++ {
		open := price
		if i%3 == 0 {
			price += 1.5
		} else if i%5 == 0 {
			price -= 0.7
		} else {
			price += 0.2
		}
		vol := 10.0
		if i%7 == 0 {
			vol = 40
		}
		sig := h.OnBarClose(&bar.SyntheticBar{Open: open, High: max2(open, price) + 0.5, Low: min2(open, price) - 0.5, Close: price, Volume: vol})
		if sig != nil && sig.System != SystemV1 && sig.System != SystemV2 {
			t.Fatalf("signal from neither known system: %+v", sig)
		}
	}
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
