package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/indicator"
)

// TrendConfig configures the edge-triggered triple-EMA + RSI strategy.
type TrendConfig struct {
	TimeframeMs int64
	EMAFastLen  int
	EMAMidLen   int
	EMASlowLen  int
	RSILength   int
	RSIMinLong  float64
	RSIMaxShort float64
}

// Trend is the edge-triggered trend engine (C5). It fires at most one
// signal per closing bar, exactly on the rising edge of its long/short
// look condition.
type Trend struct {
	log zerolog.Logger

	emaFast *indicator.EMA
	emaMid  *indicator.EMA
	emaSlow *indicator.EMA
	rsi     *indicator.RSI

	params TrendConfig

	prevLongLook  bool
	prevShortLook bool
}

// NewTrend constructs the trend engine. Fails if any indicator length is
// invalid per its own constructor.
func NewTrend(cfg TrendConfig, logger zerolog.Logger) (*Trend, error) {
	emaFast, err := indicator.NewEMA(cfg.EMAFastLen)
	if err != nil {
		return nil, fmt.Errorf("engine: trend emaFast: %w", err)
	}
	emaMid, err := indicator.NewEMA(cfg.EMAMidLen)
	if err != nil {
		return nil, fmt.Errorf("engine: trend emaMid: %w", err)
	}
	emaSlow, err := indicator.NewEMA(cfg.EMASlowLen)
	if err != nil {
		return nil, fmt.Errorf("engine: trend emaSlow: %w", err)
	}
	rsi, err := indicator.NewRSI(cfg.RSILength)
	if err != nil {
		return nil, fmt.Errorf("engine: trend rsi: %w", err)
	}

	return &Trend{
		log:     logger.With().Str("component", "trend-engine").Logger(),
		emaFast: emaFast,
		emaMid:  emaMid,
		emaSlow: emaSlow,
		rsi:     rsi,
		params:  cfg,
	}, nil
}

// OnBarClose updates the indicators on the bar's close and returns a
// signal exactly on a rising edge of longLook/shortLook, else nil.
func (t *Trend) OnBarClose(b *bar.SyntheticBar) *Signal {
	emaFast := t.emaFast.Update(b.Close)
	emaMid := t.emaMid.Update(b.Close)
	emaSlow := t.emaSlow.Update(b.Close)
	rsi := t.rsi.Update(b.Close)

	bullStack := emaFast > emaMid && emaMid > emaSlow
	bearStack := emaFast < emaMid && emaMid < emaSlow
	longLook := bullStack && rsi > t.params.RSIMinLong
	shortLook := bearStack && rsi < t.params.RSIMaxShort
	longTrig := longLook && !t.prevLongLook
	shortTrig := shortLook && !t.prevShortLook

	snapshot := TrendSnapshot{
		BullStack: bullStack,
		BearStack: bearStack,
		LongLook:  longLook,
		ShortLook: shortLook,
		LongTrig:  longTrig,
		ShortTrig: shortTrig,
	}
	indicators := IndicatorSnapshot{EMAFast: emaFast, EMAMid: emaMid, EMASlow: emaSlow, RSI: rsi}

	t.prevLongLook = longLook
	t.prevShortLook = shortLook

	var sig *Signal
	switch {
	case longTrig:
		sig = &Signal{Side: Long, Reason: ReasonLongTrigger, Indicators: indicators, Trend: snapshot, BarEndTime: b.EndTime}
	case shortTrig:
		sig = &Signal{Side: Short, Reason: ReasonShortTrigger, Indicators: indicators, Trend: snapshot, BarEndTime: b.EndTime}
	}

	if sig != nil {
		t.log.Info().
			Str("side", sig.Side.String()).
			Float64("rsi", rsi).
			Float64("ema_fast", emaFast).
			Float64("ema_mid", emaMid).
			Float64("ema_slow", emaSlow).
			Msg("trend engine signal")
	}
	return sig
}
