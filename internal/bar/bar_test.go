package bar

import "testing"

func TestBuilderAggregatesWithinTimeframe(t *testing.T) {
	b, err := NewBuilder(30000)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	closed, cur := b.PushTick(Tick{Timestamp: 1000, Price: 100, Size: 1})
	if closed != nil {
		t.Fatalf("expected no closed bar on first tick")
	}
	if cur.Open != 100 || cur.High != 100 || cur.Low != 100 || cur.Close != 100 {
		t.Fatalf("unexpected OHLC on first tick: %+v", cur)
	}

	closed, cur = b.PushTick(Tick{Timestamp: 5000, Price: 105, Size: 2})
	if closed != nil {
		t.Fatalf("bar closed too early")
	}
	if cur.High != 105 || cur.Close != 105 || cur.Volume != 3 {
		t.Fatalf("unexpected aggregation: %+v", cur)
	}

	closed, cur = b.PushTick(Tick{Timestamp: 29999, Price: 95, Size: 1})
	if closed != nil {
		t.Fatalf("bar closed too early")
	}
	if cur.Low != 95 {
		t.Fatalf("expected low updated to 95, got %+v", cur)
	}
}

func TestBuilderClosesAtExactBoundary(t *testing.T) {
	b, _ := NewBuilder(30000)
	b.PushTick(Tick{Timestamp: 0, Price: 100})

	closed, cur := b.PushTick(Tick{Timestamp: 30000, Price: 110})
	if closed == nil {
		t.Fatalf("expected bar to close exactly at startTime+timeframeMs")
	}
	if closed.Close != 100 || closed.EndTime != 0 {
		t.Fatalf("closed bar should not include the boundary tick: %+v", closed)
	}
	if cur.Open != 110 || cur.StartTime != 30000 {
		t.Fatalf("boundary tick should open the next bar: %+v", cur)
	}
}

func TestBuilderInvariants(t *testing.T) {
	b, _ := NewBuilder(1000)
	ticks := []Tick{
		{Timestamp: 0, Price: 100},
		{Timestamp: 100, Price: 102},
		{Timestamp: 200, Price: 98},
		{Timestamp: 1000, Price: 101},
		{Timestamp: 1500, Price: 103},
		{Timestamp: 2000, Price: 99},
	}
	var bars []*SyntheticBar
	for _, tk := range ticks {
		if closed, _ := b.PushTick(tk); closed != nil {
			bars = append(bars, closed)
		}
	}
	for i, bar := range bars {
		if !(bar.Low <= bar.Open && bar.Open <= bar.High) {
			t.Fatalf("bar %d violates open invariant: %+v", i, bar)
		}
		if !(bar.Low <= bar.Close && bar.Close <= bar.High) {
			t.Fatalf("bar %d violates close invariant: %+v", i, bar)
		}
		if bar.Volume < 0 {
			t.Fatalf("bar %d has negative volume", i)
		}
		if bar.StartTime > bar.EndTime {
			t.Fatalf("bar %d has startTime > endTime", i)
		}
		if i > 0 && bars[i].StartTime < bars[i-1].EndTime {
			t.Fatalf("bar %d starts before bar %d ends", i, i-1)
		}
	}
}

func TestNewBuilderRejectsNonPositiveTimeframe(t *testing.T) {
	if _, err := NewBuilder(0); err == nil {
		t.Fatalf("expected error for zero timeframe")
	}
	if _, err := NewBuilder(-1); err == nil {
		t.Fatalf("expected error for negative timeframe")
	}
}
