// Package indicator implements the streaming technical indicators the
// signal engines are built on: EMA, RSI and ADX. Every indicator here
// consumes one input at a time and keeps only the state it needs to
// produce the next value — none of them replay a window of history.
package indicator

import "fmt"

// EMA is a streaming exponential moving average. The first Update seeds
// the value directly from the input; every Update after that blends the
// input in at the smoothing factor alpha = 2/(length+1).
type EMA struct {
	length int
	alpha  float64
	value  float64
	ready  bool
}

// NewEMA constructs an EMA over the given length. length must be > 0.
func NewEMA(length int) (*EMA, error) {
	if length <= 0 {
		return nil, fmt.Errorf("indicator: EMA length must be > 0, got %d", length)
	}
	return &EMA{
		length: length,
		alpha:  2.0 / float64(length+1),
	}, nil
}

// Update feeds the next input value and returns the new EMA value.
func (e *EMA) Update(input float64) float64 {
	if !e.ready {
		e.value = input
		e.ready = true
		return e.value
	}
	e.value = input*e.alpha + e.value*(1-e.alpha)
	return e.value
}

// Value returns the current EMA value. It is meaningless before Ready.
func (e *EMA) Value() float64 {
	return e.value
}

// Ready reports whether at least one Update has been applied.
func (e *EMA) Ready() bool {
	return e.ready
}
