// Package bar aggregates a tick stream into fixed-duration synthetic
// OHLCV bars.
package bar

// Tick is a single trade print from the exchange feed. It is produced
// and owned by the feed collaborator; the bar builder never mutates one.
type Tick struct {
	Timestamp int64 // monotonic milliseconds
	Price     float64
	Size      float64 // optional; zero if the feed doesn't report size
}

// SyntheticBar is a fixed-duration OHLCV bar aggregated from ticks. A bar
// is owned by the Builder until it closes; once emitted by PushTick it
// must not be mutated by the caller.
type SyntheticBar struct {
	StartTime int64
	EndTime   int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Builder owns exactly one open bar at a time and closes it once a tick
// arrives timeframeMs or more after the bar's start.
type Builder struct {
	timeframeMs int64
	open        *SyntheticBar
}

// NewBuilder constructs a Builder for the given timeframe. timeframeMs
// must be > 0.
func NewBuilder(timeframeMs int64) (*Builder, error) {
	if timeframeMs <= 0 {
		return nil, errTimeframe
	}
	return &Builder{timeframeMs: timeframeMs}, nil
}

var errTimeframe = barError("bar: timeframeMs must be > 0")

type barError string

func (e barError) Error() string { return string(e) }

// PushTick feeds the next tick. closed is non-nil exactly when this tick
// caused the previously open bar to close (the boundary tick itself opens
// the next bar, it is never appended to the bar it closes). current is
// always the bar now open after processing the tick.
func (b *Builder) PushTick(t Tick) (closed *SyntheticBar, current *SyntheticBar) {
	if b.open == nil {
		b.open = newBarFromTick(t)
		return nil, b.open
	}

	if t.Timestamp-b.open.StartTime >= b.timeframeMs {
		closedBar := b.open
		b.open = newBarFromTick(t)
		return closedBar, b.open
	}

	b.open.High = maxf(b.open.High, t.Price)
	b.open.Low = minf(b.open.Low, t.Price)
	b.open.Close = t.Price
	b.open.Volume += t.Size
	b.open.EndTime = t.Timestamp
	return nil, b.open
}

func newBarFromTick(t Tick) *SyntheticBar {
	return &SyntheticBar{
		StartTime: t.Timestamp,
		EndTime:   t.Timestamp,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    t.Size,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
