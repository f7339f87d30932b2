package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"binance-trading-bot/internal/position"
)

func TestIsBalanceErrorRecognizesKnownCodes(t *testing.T) {
	if !IsBalanceError(errors.New("-2019 Margin is insufficient.")) {
		t.Fatalf("expected -2019 to classify as a balance error")
	}
	if !IsBalanceError(errors.New("-2010 Account has insufficient balance for requested action.")) {
		t.Fatalf("expected -2010 to classify as a balance error")
	}
}

func TestIsBalanceErrorRecognizesSubstring(t *testing.T) {
	if !IsBalanceError(errors.New("order rejected: insufficient balance in wallet")) {
		t.Fatalf("expected substring match to classify as a balance error")
	}
}

func TestIsBalanceErrorRecognizesEitherKeywordAlone(t *testing.T) {
	if !IsBalanceError(errors.New("wallet balance too low")) {
		t.Fatalf("expected a bare 'balance' mention to classify as a balance error")
	}
	if !IsBalanceError(errors.New("insufficient funds to open position")) {
		t.Fatalf("expected a bare 'insufficient' mention to classify as a balance error")
	}
}

func TestIsBalanceErrorRejectsUnrelatedErrors(t *testing.T) {
	if IsBalanceError(errors.New("connection reset by peer")) {
		t.Fatalf("did not expect a network error to classify as balance-related")
	}
	if IsBalanceError(nil) {
		t.Fatalf("did not expect nil error to classify as balance-related")
	}
}

func TestCloseMetaExitPricePrecedence(t *testing.T) {
	closeVal := 105.0
	priceVal := 102.0

	m := &CloseMeta{Close: &closeVal, Price: &priceVal}
	if v := m.ExitPrice(100); v != closeVal {
		t.Fatalf("expected Close to take precedence, got %v", v)
	}

	m2 := &CloseMeta{Price: &priceVal}
	if v := m2.ExitPrice(100); v != priceVal {
		t.Fatalf("expected Price when Close is unset, got %v", v)
	}

	if v := (*CloseMeta)(nil).ExitPrice(100); v != 100 {
		t.Fatalf("expected fallback for nil meta, got %v", v)
	}
}

func TestDryRunExecutorEnterThenClose(t *testing.T) {
	d := NewDryRunExecutor(zerolog.Nop())
	ctx := context.Background()

	if err := d.EnterLong(ctx, Order{Side: position.Long, Size: 10, Price: 100}); err != nil {
		t.Fatalf("EnterLong: %v", err)
	}
	trade, ok := d.OpenTrade()
	if !ok || trade.Side != position.Long || trade.Size != 10 {
		t.Fatalf("expected open virtual trade, got %+v, ok=%v", trade, ok)
	}

	if err := d.ClosePosition(ctx, "take-profit", nil); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if _, ok := d.OpenTrade(); ok {
		t.Fatalf("expected no open trade after close")
	}
	closed := d.ClosedTrades()
	if len(closed) != 1 || closed[0].CloseReason != "take-profit" {
		t.Fatalf("expected one closed trade with reason take-profit, got %+v", closed)
	}
}

func TestDryRunExecutorCloseWithNothingOpenIsNoop(t *testing.T) {
	d := NewDryRunExecutor(zerolog.Nop())
	if err := d.ClosePosition(context.Background(), "stop-loss", nil); err != nil {
		t.Fatalf("expected no-op close to succeed, got %v", err)
	}
}
