package indicator

import "fmt"

// ADX is a streaming Wilder Average Directional Index, used by the
// hybrid engine's regime gate. It is nil-equivalent ("not ready") until
// the ADX itself has been initialized, which needs 2*length updates:
// length updates to buffer TR/+DM/-DM, one more to seed +DI/-DI/ATR and
// start producing DX, and length DX samples to seed ADX itself.
type ADX struct {
	length int
	alpha  float64

	haveBar  bool
	prevHigh float64
	prevLow  float64
	prevClose float64

	bufferedTR  []float64
	bufferedPDM []float64
	bufferedNDM []float64

	atr   float64
	plusDI float64
	minusDI float64
	wilderInit bool

	dxBuffer []float64
	adx      float64
	adxReady bool

	updateCount int
}

// NewADX constructs an ADX over the given length. length must be >= 2.
func NewADX(length int) (*ADX, error) {
	if length < 2 {
		return nil, fmt.Errorf("indicator: ADX length must be >= 2, got %d", length)
	}
	return &ADX{
		length: length,
		alpha:  1.0 / float64(length),
	}, nil
}

// Update feeds the next (high, low, close) bar.
func (a *ADX) Update(high, low, close float64) {
	a.updateCount++

	if !a.haveBar {
		a.haveBar = true
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		return
	}

	tr := trueRange(high, low, a.prevClose)
	plusDM, minusDM := directionalMovement(high, low, a.prevHigh, a.prevLow)

	if !a.wilderInit {
		a.bufferedTR = append(a.bufferedTR, tr)
		a.bufferedPDM = append(a.bufferedPDM, plusDM)
		a.bufferedNDM = append(a.bufferedNDM, minusDM)

		if len(a.bufferedTR) == a.length {
			a.atr = mean(a.bufferedTR)
			sumPDM := mean(a.bufferedPDM)
			sumNDM := mean(a.bufferedNDM)
			a.plusDI = diFromSums(sumPDM, a.atr)
			a.minusDI = diFromSums(sumNDM, a.atr)
			a.wilderInit = true
			a.pushDX()
		}
	} else {
		a.atr = wilderSmooth(tr, a.atr, a.alpha)
		a.smoothDI(plusDM, minusDM)
		a.pushDX()
	}

	a.prevHigh, a.prevLow, a.prevClose = high, low, close
}

// smoothDI applies Wilder smoothing directly to +DI/-DI using the raw
// (unsmoothed) directional movement of this bar and the freshly smoothed
// ATR, per the standard Wilder ADX recurrence.
func (a *ADX) smoothDI(plusDM, minusDM float64) {
	plusDMSmoothed := a.plusDI * a.atr / 100.0
	minusDMSmoothed := a.minusDI * a.atr / 100.0
	plusDMSmoothed = wilderSmooth(plusDM, plusDMSmoothed, a.alpha)
	minusDMSmoothed = wilderSmooth(minusDM, minusDMSmoothed, a.alpha)
	a.plusDI = diFromSums(plusDMSmoothed, a.atr)
	a.minusDI = diFromSums(minusDMSmoothed, a.atr)
}

func (a *ADX) pushDX() {
	sum := a.plusDI + a.minusDI
	dx := 0.0
	if sum != 0 {
		dx = absf(a.plusDI-a.minusDI) / sum * 100
	}

	if !a.adxReady {
		a.dxBuffer = append(a.dxBuffer, dx)
		if len(a.dxBuffer) == a.length {
			a.adx = mean(a.dxBuffer)
			a.adxReady = true
		}
		return
	}
	a.adx = wilderSmooth(dx, a.adx, a.alpha)
}

// Value returns the current ADX value, or (0, false) if not yet ready.
func (a *ADX) Value() (float64, bool) {
	return a.adx, a.adxReady
}

// Ready reports whether ADX has been initialized.
func (a *ADX) Ready() bool {
	return a.adxReady
}

// IsTrending returns true when ADX is ready and strictly above threshold.
func (a *ADX) IsTrending(threshold float64) bool {
	return a.adxReady && a.adx > threshold
}

func trueRange(high, low, prevClose float64) float64 {
	return maxf(high-low, maxf(absf(high-prevClose), absf(low-prevClose)))
}

func directionalMovement(high, low, prevHigh, prevLow float64) (plusDM, minusDM float64) {
	if high > prevHigh && low > prevLow {
		plusDM = maxf(high-prevHigh, 0)
	}
	if low < prevLow && high < prevHigh {
		minusDM = maxf(prevLow-low, 0)
	}
	return
}

func diFromSums(smoothedDM, atr float64) float64 {
	if atr == 0 {
		return 0
	}
	return smoothedDM / atr * 100
}

func wilderSmooth(sample, prev, alpha float64) float64 {
	return sample*alpha + prev*(1-alpha)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
