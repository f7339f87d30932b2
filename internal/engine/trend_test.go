package engine

import (
	"testing"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/bar"
)

func newTestTrend(t *testing.T) *Trend {
	t.Helper()
	cfg := TrendConfig{
		TimeframeMs: 30000,
		EMAFastLen:  8,
		EMAMidLen:   21,
		EMASlowLen:  48,
		RSILength:   14,
		RSIMinLong:  42,
		RSIMaxShort: 58,
	}
	tr, err := NewTrend(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTrend: %v", err)
	}
	return tr
}

func closeBar(t int64, price float64) *bar.SyntheticBar {
	return &bar.SyntheticBar{StartTime: t, EndTime: t, Open: price, High: price, Low: price, Close: price, Volume: 1}
}

func TestTrendFiresAtMostOnceOnRisingEdge(t *testing.T) {
	tr := newTestTrend(t)

	var signals []*Signal
	price := 100.0
	for i := int64(0); i < 60; i++ {
		sig := tr.OnBarClose(closeBar(i*30000, price))
		if sig != nil {
			signals = append(signals, sig)
		}
		price += 1
	}

	if len(signals) == 0 {
		t.Fatalf("expected at least one signal on a sustained uptrend")
	}
	for i, s := range signals {
		if s.Side != Long || s.Reason != ReasonLongTrigger {
			t.Fatalf("signal %d: expected long-trigger, got %+v", i, s)
		}
	}
	// The look condition stays true across many consecutive bars once the
	// stack forms, so without edge suppression this would fire every bar.
	if len(signals) > 1 {
		t.Fatalf("expected edge-triggering to suppress repeats, got %d signals", len(signals))
	}
}

func TestTrendNoSignalWhileFlat(t *testing.T) {
	tr := newTestTrend(t)
	for i := int64(0); i < 5; i++ {
		if sig := tr.OnBarClose(closeBar(i*30000, 100)); sig != nil {
			t.Fatalf("unexpected signal on flat price series: %+v", sig)
		}
	}
}
