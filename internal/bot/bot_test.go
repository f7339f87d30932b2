package bot

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/position"
)

func testConfig() config.Config {
	return config.Config{
		StrategyConfig: config.StrategyConfig{
			Engine:      "trend",
			Symbol:      "BTCUSDT",
			TimeframeMs: 30000,
			Mode:        "dry-run",
			EMAFastLen:  8,
			EMAMidLen:   21,
			EMASlowLen:  48,
			RSILength:   14,
			RSIMinLong:  42,
			RSIMaxShort: 58,
		},
		RiskConfig: config.RiskConfig{
			MaxPositionSize: 100,
			MaxLeverage:     1,
			MaxFlipsPerHour: 10,
		},
	}
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	b, err := NewBot(testConfig(), Deps{Executor: executor.NewDryRunExecutor(zerolog.Nop())}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

func pushBars(b *Bot, n int, startPrice, step float64) {
	price := startPrice
	for i := 0; i < n; i++ {
		// Start one timeframe in: a bar ending at 0 would not pass the
		// monotonic gate against the initial lastBarCloseTime of 0.
		ts := int64(i+1) * b.strategy.TimeframeMs
		b.mu.Lock()
		closed, _ := b.builder.PushTick(bar.Tick{Timestamp: ts, Price: price})
		if closed != nil {
			b.runProtectiveExits(closed)
			b.handleBarClose(closed)
		}
		b.mu.Unlock()
		price += step
	}
}

func TestHandleBarCloseSkipsDuringWarmup(t *testing.T) {
	b := newTestBot(t)
	// n ticks close n-1 bars: push one extra to land on exactly warmupBars.
	pushBars(b, warmupBars+1, 100, 1)

	if b.barCount != warmupBars {
		t.Fatalf("expected barCount %d, got %d", warmupBars, b.barCount)
	}
	if b.posMgr.State().Side != position.Flat {
		t.Fatalf("expected no position opened during warmup")
	}
}

func TestHandleBarCloseEntersOnSustainedUptrend(t *testing.T) {
	b := newTestBot(t)
	// enough bars to clear warmup and let the EMA stack form and cross.
	pushBars(b, warmupBars+61, 100, 1)

	state := b.posMgr.State()
	if state.Side != position.Long {
		t.Fatalf("expected a long entry on a sustained uptrend, got side=%v", state.Side)
	}
	if state.Size != b.risk.MaxPositionSize {
		t.Fatalf("expected flat sizing at MaxPositionSize, got %v", state.Size)
	}
}

func TestHandleBarCloseIgnoresStaleBar(t *testing.T) {
	b := newTestBot(t)
	b.mu.Lock()
	b.lastBarCloseTime = 1000
	b.handleBarClose(&bar.SyntheticBar{EndTime: 1000, Close: 100})
	gotCount := b.barCount
	b.mu.Unlock()

	if gotCount != 0 {
		t.Fatalf("expected a non-monotonic bar to be ignored, barCount=%d", gotCount)
	}
}

func TestComputeOrderSizeFlatWhenNoPositionSizePct(t *testing.T) {
	b := newTestBot(t)
	b.risk.PositionSizePct = 0
	b.risk.MaxPositionSize = 42

	if got := b.computeOrderSize(); got != 42 {
		t.Fatalf("expected flat MaxPositionSize sizing, got %v", got)
	}
}

func TestComputeOrderSizeClampsToBounds(t *testing.T) {
	b := newTestBot(t)
	b.risk.PositionSizePct = 100
	b.risk.MaxLeverage = 20
	b.risk.MaxPositionSize = 1000
	b.onBalanceSnapshot(1_000_000)

	if got := b.computeOrderSize(); got != 500 {
		t.Fatalf("expected clamp to upper bound 500, got %v", got)
	}

	b.onBalanceSnapshot(1)
	b.risk.MaxLeverage = 1
	if got := b.computeOrderSize(); got != 5 {
		t.Fatalf("expected clamp to lower bound 5, got %v", got)
	}
}

func TestFlipBudgetAllowsPrunesOldEntries(t *testing.T) {
	b := newTestBot(t)
	b.risk.MaxFlipsPerHour = 2
	now := time.Now()

	b.flipTimestamps = []time.Time{now.Add(-2 * time.Hour), now.Add(-90 * time.Minute)}
	if !b.flipBudgetAllows(now) {
		t.Fatalf("expected budget to allow once stale flips are pruned")
	}
	if len(b.flipTimestamps) != 0 {
		t.Fatalf("expected stale flip timestamps to be pruned, got %d left", len(b.flipTimestamps))
	}

	b.flipTimestamps = []time.Time{now, now}
	if b.flipBudgetAllows(now) {
		t.Fatalf("expected budget to deny once the hourly cap is reached")
	}
}

func TestForceCloseRequiresOpenPosition(t *testing.T) {
	b := newTestBot(t)
	if err := b.ForceClose("operator request"); err == nil {
		t.Fatalf("expected ForceClose on a flat bot to error")
	}
}
