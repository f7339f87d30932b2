package tradehistory

import (
	"testing"

	"binance-trading-bot/internal/position"
)

func TestParseSideRoundTripsKnownSides(t *testing.T) {
	cases := map[string]position.Side{
		position.Long.String():  position.Long,
		position.Short.String(): position.Short,
		position.Flat.String():  position.Flat,
		"garbage":               position.Flat,
	}
	for input, want := range cases {
		if got := parseSide(input); got != want {
			t.Fatalf("parseSide(%q) = %v, want %v", input, got, want)
		}
	}
}
