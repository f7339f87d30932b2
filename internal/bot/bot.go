// Package bot wires the signal engines, position reconciliation, order
// tracking, and trade statistics into the single orchestrator (C10)
// that drives one trading instrument end to end.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/engine"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/executor"
	"binance-trading-bot/internal/ordertracker"
	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/stats"
	"binance-trading-bot/internal/tradehistory"
	"binance-trading-bot/internal/warmstate"
)

const (
	warmupBars          = 10
	minHoldBars         = 6
	maxProcessedSignals = 100
	freezeDuration      = 60 * time.Second
	orderExpirySweep    = 5 * time.Second
)

// tradeAppender is the narrow CSV logging surface the orchestrator
// needs; letting tests substitute a no-op keeps bot_test.go free of a
// real filesystem dependency.
type tradeAppender interface {
	Append(id string, trade stats.Trade) error
}

// Deps bundles the orchestrator's external collaborators. WarmStore,
// CSVWriter, and TradeHistory are each individually optional.
type Deps struct {
	Executor     executor.Executor
	WarmStore    warmstate.Store
	CSVWriter    tradeAppender
	TradeHistory *tradehistory.Repository
}

// Bot is the single-instrument orchestrator: it owns the position,
// flip history, processed-signal set, and trade stats, and is the only
// caller of the executor.
type Bot struct {
	log       zerolog.Logger
	symbol    string
	dryRun    bool
	useHybrid bool
	strategy  config.StrategyConfig
	risk      config.RiskConfig

	builder *bar.Builder
	trend   *engine.Trend
	hybrid  *engine.Hybrid

	posMgr  *position.Manager
	tracker *ordertracker.Tracker
	tstats  *stats.Tracker
	exec    executor.Executor
	csv     tradeAppender
	history *tradehistory.Repository
	warm    warmstate.Store

	events chan Event

	// mu serializes the tick -> bar-close -> signal -> executor pipeline
	// and every field below it: exactly one bar-close and one executor
	// call in flight at a time.
	mu               sync.Mutex
	lastBarCloseTime int64
	barCount         int
	frozen           bool
	freezeUntil      time.Time
	paused           bool
	processedSet     map[string]struct{}
	processedOrder   []string
	positionOpenedAt int
	flipTimestamps   []time.Time
	highestPrice     float64
	lowestPrice      float64
	haveExtrema      bool

	// usdtBalance is written only from the balance-snapshot handler and
	// read only from the entry path; a dedicated lock avoids contending
	// with mu on every tick.
	balanceMu   sync.RWMutex
	usdtBalance float64
}

// NewBot constructs the orchestrator for cfg, building whichever signal
// engine the strategy config selects.
func NewBot(cfg config.Config, deps Deps, logger zerolog.Logger) (*Bot, error) {
	strat := cfg.StrategyConfig

	builder, err := bar.NewBuilder(strat.TimeframeMs)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		log:          logger.With().Str("component", "bot-orchestrator").Logger(),
		symbol:       strat.Symbol,
		dryRun:       strat.Mode != "live",
		useHybrid:    strat.Engine == "hybrid",
		strategy:     strat,
		risk:         cfg.RiskConfig,
		builder:      builder,
		posMgr:       position.NewManager(logger),
		tracker:      ordertracker.NewTracker(logger),
		tstats:       stats.NewTracker(logger),
		exec:         deps.Executor,
		csv:          deps.CSVWriter,
		history:      deps.TradeHistory,
		warm:         deps.WarmStore,
		events:       make(chan Event, 256),
		processedSet: make(map[string]struct{}),
	}

	if b.useHybrid {
		hybrid, err := engine.NewHybrid(hybridConfigFrom(strat), logger)
		if err != nil {
			return nil, err
		}
		b.hybrid = hybrid
	} else {
		trend, err := engine.NewTrend(trendConfigFrom(strat), logger)
		if err != nil {
			return nil, err
		}
		b.trend = trend
	}

	return b, nil
}

func trendConfigFrom(s config.StrategyConfig) engine.TrendConfig {
	return engine.TrendConfig{
		TimeframeMs: s.TimeframeMs,
		EMAFastLen:  s.EMAFastLen,
		EMAMidLen:   s.EMAMidLen,
		EMASlowLen:  s.EMASlowLen,
		RSILength:   s.RSILength,
		RSIMinLong:  s.RSIMinLong,
		RSIMaxShort: s.RSIMaxShort,
	}
}

func hybridConfigFrom(s config.StrategyConfig) engine.HybridConfig {
	return engine.HybridConfig{
		V1EMAFastLen:      s.EMAFastLen,
		V1EMAMidLen:       s.EMAMidLen,
		V1EMASlowLen:      s.EMASlowLen,
		V1EMAMicroFastLen: s.V1EMAMicroFastLen,
		V1EMAMicroSlowLen: s.V1EMAMicroSlowLen,
		V1RSILength:       s.RSILength,
		V1RSIMinLong:      s.RSIMinLong,
		V1RSIMaxShort:     s.RSIMaxShort,
		MinBarsBetween:    s.MinBarsBetween,
		MinMovePercent:    s.MinMovePercent,

		V2EMAFastLen:         s.V2EMAFastLen,
		V2EMAMidLen:          s.V2EMAMidLen,
		V2EMASlowLen:         s.V2EMASlowLen,
		V2RSILength:          s.V2RSILength,
		RSIMomentumThreshold: s.RSIMomentumThreshold,
		VolumeLookback:       s.VolumeLookback,
		VolumeMultiplier:     s.VolumeMultiplier,

		ADXLength:            s.ADXLength,
		ExitVolumeMultiplier: s.ExitVolumeMultiplier,
	}
}

// Run drives the orchestrator's single logical pipeline until ctx is
// canceled: ticks build bars; a closed bar runs protective exits then
// handleBarClose; snapshots feed reconciliation and the balance cache;
// a periodic sweep expires stale pending orders.
func (b *Bot) Run(ctx context.Context, ticks <-chan bar.Tick, positions <-chan exchange.PositionUpdate, balances <-chan exchange.BalanceUpdate) {
	b.loadWarmState()

	sweep := time.NewTicker(orderExpirySweep)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			b.publish(Event{Kind: EventStop, Message: "bot: shutting down", At: time.Now()})
			return

		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			b.onTick(t)

		case pu, ok := <-positions:
			if !ok {
				positions = nil
				continue
			}
			b.onPositionSnapshot(pu.Snapshot, pu.At)

		case bu, ok := <-balances:
			if !ok {
				balances = nil
				continue
			}
			b.onBalanceSnapshot(bu.USDT)

		case now := <-sweep.C:
			b.mu.Lock()
			b.tracker.ExpireStale(now)
			b.mu.Unlock()
		}
	}
}

func (b *Bot) onTick(t bar.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	closed, _ := b.builder.PushTick(t)
	if closed == nil {
		return
	}

	b.runProtectiveExits(closed)
	b.handleBarClose(closed)
}

func engineSideToPosition(s engine.Side) position.Side {
	if s == engine.Long {
		return position.Long
	}
	return position.Short
}

func engineSideFromPosition(s position.Side) engine.Side {
	if s == position.Long {
		return engine.Long
	}
	return engine.Short
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
