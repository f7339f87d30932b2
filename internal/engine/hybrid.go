package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/bar"
	"binance-trading-bot/internal/indicator"
)

// HybridConfig configures the V1 bias + V2 momentum-surge hybrid engine.
type HybridConfig struct {
	// V1 — trend/bias sub-system.
	V1EMAFastLen      int
	V1EMAMidLen       int
	V1EMASlowLen      int
	V1EMAMicroFastLen int
	V1EMAMicroSlowLen int
	V1RSILength       int
	V1RSIMinLong      float64
	V1RSIMaxShort     float64
	MinBarsBetween    int
	MinMovePercent    float64

	// V2 — momentum-surge sub-system.
	V2EMAFastLen         int
	V2EMAMidLen          int
	V2EMASlowLen         int
	V2RSILength          int
	RSIMomentumThreshold float64
	VolumeLookback       int
	VolumeMultiplier     float64

	// Regime gate.
	ADXLength int

	// Exit detector.
	ExitVolumeMultiplier float64
}

const exitRSIHistoryLen = 3

// Hybrid is the hybrid trend + momentum-surge engine (C6): V1 bias,
// V2 momentum surge, an exit detector, and an ADX regime gate, all
// sharing one evaluation per closing bar.
type Hybrid struct {
	log zerolog.Logger
	cfg HybridConfig

	v1 v1State
	v2 v2State
	adx *indicator.ADX

	positionSide *Side // nil when flat
}

type v1State struct {
	emaFast, emaMid, emaSlow       *indicator.EMA
	emaMicroFast, emaMicroSlow     *indicator.EMA
	rsi                            *indicator.RSI
	prevLongLook, prevShortLook    bool
	barsSinceLastSignal            int
	haveLongEntry, haveShortEntry  bool
	lastLongEntryPrice             float64
	lastShortEntryPrice            float64
}

type v2State struct {
	emaFast, emaMid, emaSlow *indicator.EMA
	rsi                      *indicator.RSI
	lastRSI                  float64
	haveLastRSI              bool
	rsiHistory               []float64 // most recent last, bounded at exitRSIHistoryLen
	volumeRing               []float64
	volumeRingCap            int
}

// NewHybrid constructs the hybrid engine. Fails if any indicator length
// is invalid per its own constructor.
func NewHybrid(cfg HybridConfig, logger zerolog.Logger) (*Hybrid, error) {
	h := &Hybrid{log: logger.With().Str("component", "hybrid-engine").Logger(), cfg: cfg}

	var err error
	if h.v1.emaFast, err = indicator.NewEMA(cfg.V1EMAFastLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 emaFast: %w", err)
	}
	if h.v1.emaMid, err = indicator.NewEMA(cfg.V1EMAMidLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 emaMid: %w", err)
	}
	if h.v1.emaSlow, err = indicator.NewEMA(cfg.V1EMASlowLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 emaSlow: %w", err)
	}
	if h.v1.emaMicroFast, err = indicator.NewEMA(cfg.V1EMAMicroFastLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 emaMicroFast: %w", err)
	}
	if h.v1.emaMicroSlow, err = indicator.NewEMA(cfg.V1EMAMicroSlowLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 emaMicroSlow: %w", err)
	}
	if h.v1.rsi, err = indicator.NewRSI(cfg.V1RSILength); err != nil {
		return nil, fmt.Errorf("engine: hybrid v1 rsi: %w", err)
	}

	if h.v2.emaFast, err = indicator.NewEMA(cfg.V2EMAFastLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v2 emaFast: %w", err)
	}
	if h.v2.emaMid, err = indicator.NewEMA(cfg.V2EMAMidLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v2 emaMid: %w", err)
	}
	if h.v2.emaSlow, err = indicator.NewEMA(cfg.V2EMASlowLen); err != nil {
		return nil, fmt.Errorf("engine: hybrid v2 emaSlow: %w", err)
	}
	if h.v2.rsi, err = indicator.NewRSI(cfg.V2RSILength); err != nil {
		return nil, fmt.Errorf("engine: hybrid v2 rsi: %w", err)
	}
	h.v2.volumeRingCap = cfg.VolumeLookback
	if h.v2.volumeRingCap < 10 {
		h.v2.volumeRingCap = 10
	}

	if h.adx, err = indicator.NewADX(cfg.ADXLength); err != nil {
		return nil, fmt.Errorf("engine: hybrid adx: %w", err)
	}

	return h, nil
}

// SetPositionSide informs the engine of the orchestrator's current
// position, which the exit detector needs. Pass nil for flat.
func (h *Hybrid) SetPositionSide(side *Side) {
	h.positionSide = side
}

// OnBarClose updates every indicator on the bar and returns at most one
// signal: both systems are evaluated on every bar, and V2's signal is
// returned only if V1 did not fire.
func (h *Hybrid) OnBarClose(b *bar.SyntheticBar) *Signal {
	h.adx.Update(b.High, b.Low, b.Close)

	v1Sig := h.updateV1(b)
	v2Sig := h.updateV2(b)

	if v1Sig != nil {
		return v1Sig
	}
	return v2Sig
}

func (h *Hybrid) updateV1(b *bar.SyntheticBar) *Signal {
	v := &h.v1
	emaFast := v.emaFast.Update(b.Close)
	emaMid := v.emaMid.Update(b.Close)
	emaSlow := v.emaSlow.Update(b.Close)
	microFast := v.emaMicroFast.Update(b.Close)
	microSlow := v.emaMicroSlow.Update(b.Close)
	rsi := v.rsi.Update(b.Close)

	bullStack := emaFast > emaMid && emaMid > emaSlow
	bearStack := emaFast < emaMid && emaMid < emaSlow
	longLook := bullStack && rsi > h.cfg.V1RSIMinLong && microFast > microSlow
	shortLook := bearStack && rsi < h.cfg.V1RSIMaxShort && microFast < microSlow
	longTrig := longLook && !v.prevLongLook
	shortTrig := shortLook && !v.prevShortLook

	v.prevLongLook = longLook
	v.prevShortLook = shortLook
	v.barsSinceLastSignal++

	snapshot := TrendSnapshot{BullStack: bullStack, BearStack: bearStack, LongLook: longLook, ShortLook: shortLook, LongTrig: longTrig, ShortTrig: shortTrig}
	indicators := IndicatorSnapshot{EMAFast: emaFast, EMAMid: emaMid, EMASlow: emaSlow, RSI: rsi}

	var sig *Signal
	switch {
	case longTrig && h.v1BarsOK() && h.v1MoveOK(Long, b.Close):
		sig = &Signal{Side: Long, Reason: ReasonV1Long, System: SystemV1, Indicators: indicators, Trend: snapshot, BarEndTime: b.EndTime}
	case shortTrig && h.v1BarsOK() && h.v1MoveOK(Short, b.Close):
		sig = &Signal{Side: Short, Reason: ReasonV1Short, System: SystemV1, Indicators: indicators, Trend: snapshot, BarEndTime: b.EndTime}
	}

	if sig != nil {
		v.barsSinceLastSignal = 0
		if sig.Side == Long {
			v.lastLongEntryPrice = b.Close
			v.haveLongEntry = true
		} else {
			v.lastShortEntryPrice = b.Close
			v.haveShortEntry = true
		}
		h.log.Info().Str("side", sig.Side.String()).Str("system", "v1").Float64("price", b.Close).Msg("hybrid v1 signal")
	}
	return sig
}

func (h *Hybrid) v1BarsOK() bool {
	return h.v1.barsSinceLastSignal >= h.cfg.MinBarsBetween
}

func (h *Hybrid) v1MoveOK(side Side, price float64) bool {
	v := &h.v1
	if side == Long {
		if !v.haveLongEntry {
			return true
		}
		return movePercent(v.lastLongEntryPrice, price) >= h.cfg.MinMovePercent
	}
	if !v.haveShortEntry {
		return true
	}
	return movePercent(v.lastShortEntryPrice, price) >= h.cfg.MinMovePercent
}

func movePercent(from, to float64) float64 {
	if from == 0 {
		return math.Inf(1)
	}
	return math.Abs(to-from) / from * 100
}

func (h *Hybrid) updateV2(b *bar.SyntheticBar) *Signal {
	v := &h.v2
	emaFast := v.emaFast.Update(b.Close)
	emaMid := v.emaMid.Update(b.Close)
	emaSlow := v.emaSlow.Update(b.Close)
	rsiNow := v.rsi.Update(b.Close)

	avgVolume := ringMean(v.volumeRing)

	var sig *Signal
	if v.haveLastRSI {
		rsiMomentum := rsiNow - v.lastRSI
		rsiSurge := math.Abs(rsiMomentum) >= h.cfg.RSIMomentumThreshold
		volumeSpike := avgVolume > 0 && b.Volume >= avgVolume*h.cfg.VolumeMultiplier
		volumeColor := b.Close > b.Open
		emaBullish := emaFast > emaMid && emaMid > emaSlow
		emaBearish := emaFast < emaMid && emaMid < emaSlow

		indicators := IndicatorSnapshot{EMAFast: emaFast, EMAMid: emaMid, EMASlow: emaSlow, RSI: rsiNow}

		switch {
		case rsiSurge && rsiMomentum > 0 && volumeSpike && volumeColor && emaBullish:
			sig = &Signal{Side: Long, Reason: ReasonV2Long, System: SystemV2, Indicators: indicators, BarEndTime: b.EndTime}
		case rsiSurge && rsiMomentum < 0 && volumeSpike && !volumeColor && emaBearish:
			sig = &Signal{Side: Short, Reason: ReasonV2Short, System: SystemV2, Indicators: indicators, BarEndTime: b.EndTime}
		}
		if sig != nil {
			h.log.Info().Str("side", sig.Side.String()).Str("system", "v2").Float64("rsi_momentum", rsiMomentum).Msg("hybrid v2 signal")
		}
	}

	v.lastRSI = rsiNow
	v.haveLastRSI = true
	v.rsiHistory = pushBounded(v.rsiHistory, rsiNow, exitRSIHistoryLen)
	v.volumeRing = pushBounded(v.volumeRing, b.Volume, v.volumeRingCap)

	return sig
}

func pushBounded(xs []float64, x float64, cap int) []float64 {
	xs = append(xs, x)
	if len(xs) > cap {
		xs = xs[len(xs)-cap:]
	}
	return xs
}

func ringMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ShouldAllowTrading is the regime gate: trading is allowed when ADX is
// not yet ready (indeterminate regime) or when it reads above threshold.
func (h *Hybrid) ShouldAllowTrading(threshold float64) bool {
	adx, ready := h.adx.Value()
	if !ready {
		return true
	}
	return adx > threshold
}

// CheckExit evaluates the exit detector. It must only be called while
// the position is non-flat; it reads the last three RSI samples of the
// V2 RSI stream and the V2 volume ring's average.
func (h *Hybrid) CheckExit(b *bar.SyntheticBar) (exit bool, reason string) {
	if h.positionSide == nil {
		return false, ""
	}
	hist := h.v2.rsiHistory
	if len(hist) < exitRSIHistoryLen {
		return false, ""
	}
	last := hist[len(hist)-1]
	threeBack := hist[len(hist)-3]

	rsiMomentum := math.Abs(last - threeBack)
	rsiFlattening := rsiMomentum < 2.0

	avgVolume := ringMean(h.v2.volumeRing)
	volumeRatio := 0.0
	if avgVolume > 0 {
		volumeRatio = b.Volume / avgVolume
	}
	volumeDrop := volumeRatio < h.cfg.ExitVolumeMultiplier

	isLong := *h.positionSide == Long
	adverseRSI := (isLong && last < threeBack) || (!isLong && last > threeBack)

	switch {
	case adverseRSI:
		return true, "rsi-reversal"
	case rsiFlattening && volumeDrop:
		return true, "rsi-flattening-volume-drop"
	default:
		return false, ""
	}
}
