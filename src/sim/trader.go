package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stock-exchange/src/exchange"
)

// basePrices anchor the random walk per symbol, in cents.
var basePrices = map[string]int64{
	"AAPL":  15000,
	"MSFT":  30000,
	"GOOGL": 14000,
	"INTC":  3500,
	"AMD":   11000,
	"NVDA":  45000,
}

const (
	orderTTL     = 5 * time.Second
	modifyChance = 0.3
	claimChance  = 0.1
)

// Trader is a synthetic market participant. It only uses the public engine
// operations: submit, modify, claim and the alert/order snapshots.
type Trader struct {
	name     string
	exchange *exchange.Exchange
	rng      *rand.Rand
	active   []string // ids of orders this trader believes are live
}

func NewTrader(name string, ex *exchange.Exchange) *Trader {
	return &Trader{
		name:     name,
		exchange: ex,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(name)))),
	}
}

// Run drives the trader until ctx is cancelled or rounds submissions have
// been made. rounds <= 0 means run until cancelled.
func (t *Trader) Run(ctx context.Context, rounds int) {
	for i := 0; rounds <= 0 || i < rounds; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(t.rng.Intn(400)+100) * time.Millisecond):
		}

		switch {
		case t.rng.Float64() < claimChance && t.tryClaimAlert():
		case len(t.active) > 0 && t.rng.Float64() < modifyChance:
			t.tryModifyOldOrder()
		default:
			t.submitNewOrder()
		}

		t.pruneFilled()
	}
}

func (t *Trader) submitNewOrder() {
	symbols := t.exchange.Symbols()
	symbol := symbols[t.rng.Intn(len(symbols))]

	base, ok := basePrices[symbol]
	if !ok {
		base = 10000
	}

	side := exchange.SideBuy
	if t.rng.Intn(2) == 0 {
		side = exchange.SideSell
	}

	// +-5% around the base price
	price := base + (base*int64(t.rng.Intn(101)-50))/1000
	quantity := int64(t.rng.Intn(91) + 10)

	order := exchange.NewOrder(symbol, side, price, quantity, t.name)
	if err := t.exchange.SubmitOrder(order); err != nil {
		if !errors.Is(err, exchange.ErrClosed) {
			log.Warn().Err(err).Str("trader", t.name).Msg("Order rejected")
		}
		return
	}
	t.active = append(t.active, order.ID)
}

func (t *Trader) tryModifyOldOrder() {
	orderID := t.active[t.rng.Intn(len(t.active))]

	view, err := t.exchange.Order(orderID)
	if err != nil {
		return
	}
	if time.Since(time.UnixMilli(view.CreatedAt)) < orderTTL {
		return
	}

	// buys chase up, sells chase down
	newPrice := view.Price * 102 / 100
	if view.Side == exchange.SideSell {
		newPrice = view.Price * 98 / 100
	}

	_ = t.exchange.ModifyOrder(orderID, newPrice)
}

func (t *Trader) tryClaimAlert() bool {
	alerts := t.exchange.ActiveAlerts(t.name)
	if len(alerts) == 0 {
		return false
	}

	alert := alerts[t.rng.Intn(len(alerts))]
	err := t.exchange.ClaimAlert(alert.ID, t.name)
	if err == nil {
		log.Info().
			Str("trader", t.name).
			Str("alert_id", alert.ID).
			Str("symbol", alert.Symbol).
			Int64("price", alert.Price).
			Msg("Alert claimed")
	}
	return true
}

func (t *Trader) pruneFilled() {
	live := t.active[:0]
	for _, orderID := range t.active {
		if view, err := t.exchange.Order(orderID); err == nil && view.Quantity > 0 {
			live = append(live, orderID)
		}
	}
	t.active = live
}

// RunTraders launches n traders and blocks until all finish their rounds or
// ctx is cancelled.
func RunTraders(ctx context.Context, ex *exchange.Exchange, n, rounds int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		trader := NewTrader(fmt.Sprintf("sim-trader-%d", i+1), ex)
		wg.Add(1)
		go func() {
			defer wg.Done()
			trader.Run(ctx, rounds)
		}()
	}
	wg.Wait()
}
