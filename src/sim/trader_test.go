package sim_test

import (
	"context"
	"testing"
	"time"

	"stock-exchange/src/exchange"
	"stock-exchange/src/sim"
)

func newSimExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	ex := exchange.NewExchange(exchange.Config{
		Symbols:        []string{"AAPL", "MSFT"},
		AlertThreshold: 3000,
		QueueSize:      1024,
	})
	t.Cleanup(ex.Close)
	return ex
}

func TestTradersGenerateActivity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping simulation in short mode")
	}

	ex := newSimExchange(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sim.RunTraders(ctx, ex, 3, 4)

	if err := ex.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := ex.Stats()
	if stats.OrdersSubmitted == 0 {
		t.Error("Expected traders to submit at least one order")
	}
}

// TestSimulatedTradesNeverSelfMatch runs a busy market and checks the one
// property the simulation must never violate.
func TestSimulatedTradesNeverSelfMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping simulation in short mode")
	}

	ex := newSimExchange(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sim.RunTraders(ctx, ex, 4, 6)

	if err := ex.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	for _, trade := range ex.TradeHistory() {
		if trade.BuyerID == trade.SellerID {
			t.Errorf("Trade matched a trader against itself: %+v", trade)
		}
	}
}

func TestRunTradersStopsOnCancel(t *testing.T) {
	ex := newSimExchange(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.RunTraders(ctx, ex, 2, 0)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected traders to stop after cancellation")
	}
}
