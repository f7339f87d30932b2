package csvlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/stats"
)

func sampleTrade() stats.Trade {
	return stats.Trade{
		Side:       position.Long,
		EntryPrice: 100,
		ExitPrice:  110,
		Size:       1,
		Leverage:   2,
		OpenedAt:   time.Unix(0, 0),
		ClosedAt:   time.Unix(600, 0),
		Reason:     "take-profit",
		PnL:        10,
		PnLPct:     20,
	}
}

func TestAppendWritesHeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	w := NewWriter(path)

	if err := w.Append("order-1", sampleTrade()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append("order-2", sampleTrade()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 1 header + 2 rows, got %d records", len(records))
	}
	for i, want := range header {
		if records[0][i] != want {
			t.Fatalf("header mismatch at %d: want %q got %q", i, want, records[0][i])
		}
	}
	if records[1][1] != "order-1" || records[2][1] != "order-2" {
		t.Fatalf("unexpected order ids: %v", records)
	}
}
