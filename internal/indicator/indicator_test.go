package indicator

import "testing"

func TestEMASeedsOnFirstUpdate(t *testing.T) {
	e, err := NewEMA(10)
	if err != nil {
		t.Fatalf("NewEMA: %v", err)
	}
	if e.Ready() {
		t.Fatalf("EMA should not be ready before first update")
	}
	if v := e.Update(100); v != 100 {
		t.Fatalf("expected seed value 100, got %v", v)
	}
	if !e.Ready() {
		t.Fatalf("EMA should be ready after first update")
	}
	v := e.Update(110)
	alpha := 2.0 / 11.0
	want := 110*alpha + 100*(1-alpha)
	if v != want {
		t.Fatalf("expected %v, got %v", want, v)
	}
}

func TestNewEMARejectsNonPositiveLength(t *testing.T) {
	if _, err := NewEMA(0); err == nil {
		t.Fatalf("expected error for length 0")
	}
}

func TestRSIBoundaryCases(t *testing.T) {
	// avgLoss == 0, avgGain > 0 -> 100
	r, _ := NewRSI(3)
	r.Update(100)
	r.Update(101)
	r.Update(102)
	v := r.Update(103)
	if v != 100 {
		t.Fatalf("expected RSI 100 on pure gains, got %v", v)
	}

	// flat series: avgGain == avgLoss == 0 -> 50
	r2, _ := NewRSI(3)
	r2.Update(100)
	v2 := r2.Update(100)
	if v2 != 50 {
		t.Fatalf("expected RSI 50 on flat input, got %v", v2)
	}
}

func TestRSIStaysInRange(t *testing.T) {
	r, _ := NewRSI(14)
	prices := []float64{100, 102, 101, 105, 103, 99, 98, 97, 101, 104, 106, 108, 107, 105, 103, 100, 95, 90, 92, 94}
	for _, p := range prices {
		v := r.Update(p)
		if v < 0 || v > 100 {
			t.Fatalf("RSI out of [0,100]: %v", v)
		}
	}
	if !r.Ready() {
		t.Fatalf("expected RSI ready after %d updates", len(prices))
	}
}

func TestNewRSIRejectsShortLength(t *testing.T) {
	if _, err := NewRSI(1); err == nil {
		t.Fatalf("expected error for length < 2")
	}
}

func TestADXNullUntilTwiceLength(t *testing.T) {
	length := 5
	a, err := NewADX(length)
	if err != nil {
		t.Fatalf("NewADX: %v", err)
	}

	high, low, close := 100.0, 95.0, 98.0
	for i := 0; i < 2*length-1; i++ {
		high += 1
		low += 1
		close += 1
		a.Update(high, low, close)
		if a.Ready() {
			t.Fatalf("ADX became ready early at update %d", i+1)
		}
	}
	high += 1
	low += 1
	close += 1
	a.Update(high, low, close)
	if !a.Ready() {
		t.Fatalf("expected ADX ready at updateCount == 2*length")
	}
}

func TestNewADXRejectsShortLength(t *testing.T) {
	if _, err := NewADX(1); err == nil {
		t.Fatalf("expected error for length < 2")
	}
}
