package exchange

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// run is the engine loop: the single consumer of the command channel and
// the only goroutine that mutates books, registry and alert index.
// Commands are applied to completion, strictly in enqueue order.
func (e *Exchange) run() {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			log.Info().Msg("Exchange engine stopped")
			return
		case cmd := <-e.cmds:
			e.apply(cmd)
		}
	}
}

func (e *Exchange) apply(cmd command) {
	switch c := cmd.(type) {
	case newOrderCmd:
		e.processNewOrder(c.order)
	case cancelCmd:
		e.processCancel(c.orderID)
	case modifyCmd:
		e.processModify(c.orderID, c.newPrice)
	case claimCmd:
		e.processClaim(c.alertID, c.orderID, c.buyerID)
	case flushCmd:
		close(c.done)
	}
}

func (e *Exchange) processNewOrder(order *Order) {
	book, exists := e.books[order.Symbol]
	if !exists {
		return
	}

	e.ordersMu.Lock()
	e.orders[order.ID] = order
	e.ordersMu.Unlock()

	e.match(order, book)

	if order.Remaining() > 0 {
		book.add(order)
		e.maybeCreateAlert(order)
	}
}

func crosses(taker, resting *Order) bool {
	if taker.Side == SideBuy {
		return taker.PriceCents() >= resting.PriceCents()
	}
	return taker.PriceCents() <= resting.PriceCents()
}

// match executes the incoming order against the opposite side of the book.
// Scan policy, preserved exactly as observed in production: resting orders
// from the same trader are set aside and the scan moves on, but the first
// order from another trader is price-tested once — if it does not cross,
// the scan stops for this round instead of walking deeper into the book.
func (e *Exchange) match(taker *Order, book *OrderBook) {
	opposite := SideSell
	if taker.Side == SideSell {
		opposite = SideBuy
	}

	for taker.Remaining() > 0 && book.sideLen(opposite) > 0 {
		var counterpart *bookEntry
		var setAside []*bookEntry

		for {
			top := book.popBest(opposite)
			if top == nil {
				break
			}
			if top.order.TraderID == taker.TraderID {
				setAside = append(setAside, top)
				continue
			}
			if crosses(taker, top.order) {
				counterpart = top
			} else {
				setAside = append(setAside, top)
			}
			break
		}

		for _, entry := range setAside {
			book.reinsert(entry)
		}

		if counterpart == nil {
			break
		}

		maker := counterpart.order
		quantity := taker.Remaining()
		if maker.Remaining() < quantity {
			quantity = maker.Remaining()
		}
		price := maker.PriceCents() // resting side sets the execution price

		buyerID, sellerID := maker.TraderID, taker.TraderID
		if taker.Side == SideBuy {
			buyerID, sellerID = taker.TraderID, maker.TraderID
		}

		e.recordTrade(newTrade(taker.Symbol, quantity, price, buyerID, sellerID))

		taker.setRemaining(taker.Remaining() - quantity)
		maker.setRemaining(maker.Remaining() - quantity)

		if maker.Remaining() > 0 {
			book.reinsert(counterpart)
			e.refreshAlertQuantity(maker.ID, maker.Remaining())
		} else {
			e.dropOrder(maker.ID)
			e.removeAlertForOrder(maker.ID)
		}

		if taker.Remaining() == 0 {
			e.dropOrder(taker.ID)
			e.removeAlertForOrder(taker.ID)
			break
		}
	}
}

func (e *Exchange) processCancel(orderID string) {
	e.ordersMu.RLock()
	order := e.orders[orderID]
	e.ordersMu.RUnlock()
	if order == nil {
		return
	}

	book, exists := e.books[order.Symbol]
	if !exists {
		return
	}

	book.remove(orderID)
	e.dropOrder(orderID)
	e.removeAlertForOrder(orderID)
	atomic.AddInt64(&e.ordersCancelled, 1)

	log.Debug().
		Str("order_id", orderID).
		Str("symbol", order.Symbol).
		Msg("Order cancelled")
}

func (e *Exchange) processModify(orderID string, newPrice int64) {
	e.ordersMu.RLock()
	order := e.orders[orderID]
	e.ordersMu.RUnlock()
	if order == nil {
		return
	}

	book, exists := e.books[order.Symbol]
	if !exists {
		return
	}

	book.remove(orderID)
	e.removeAlertForOrder(orderID)

	order.setPrice(newPrice)
	order.resetTimestamp()
	atomic.AddInt64(&e.ordersModified, 1)

	log.Debug().
		Str("order_id", orderID).
		Int64("new_price", newPrice).
		Msg("Order repriced, re-matching")

	// a modify can cross immediately at the new price
	e.match(order, book)

	if order.Remaining() > 0 {
		book.add(order)
		e.maybeCreateAlert(order)
	} else {
		e.dropOrder(orderID)
	}
}

// processClaim is the second phase of the claim protocol: the order may
// have been cancelled or filled while the command sat in the queue, in
// which case only the residual alert entry is dropped. Otherwise the whole
// remaining quantity trades at the order's own price — a guaranteed full
// fill that bypasses book matching.
func (e *Exchange) processClaim(alertID, orderID, buyerID string) {
	e.ordersMu.RLock()
	order := e.orders[orderID]
	e.ordersMu.RUnlock()

	if order == nil || order.Remaining() <= 0 {
		e.removeAlertForOrder(orderID)
		return
	}

	book, exists := e.books[order.Symbol]
	if !exists {
		e.removeAlertForOrder(orderID)
		return
	}

	book.remove(orderID)
	e.removeAlertForOrder(orderID)

	log.Debug().
		Str("alert_id", alertID).
		Str("order_id", orderID).
		Str("buyer_id", buyerID).
		Msg("Executing claimed alert")

	e.recordTrade(newTrade(order.Symbol, order.Remaining(), order.PriceCents(), buyerID, order.TraderID))

	order.setRemaining(0)
	e.dropOrder(orderID)
}

func (e *Exchange) maybeCreateAlert(order *Order) {
	if order.Side != SideSell {
		return
	}
	if order.PriceCents() >= e.threshold {
		return
	}
	if order.Remaining() <= 0 {
		return
	}

	e.alertsMu.Lock()
	defer e.alertsMu.Unlock()

	if _, exists := e.alertByOrder[order.ID]; exists {
		return
	}

	alert := newAlert(order)
	e.alerts[alert.ID] = alert
	e.alertByOrder[order.ID] = alert.ID
	atomic.AddInt64(&e.alertsCreated, 1)

	log.Info().
		Str("alert_id", alert.ID).
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Int64("price", alert.Price).
		Int64("quantity", alert.Quantity).
		Msg("Low price alert created")
}

func (e *Exchange) removeAlertForOrder(orderID string) {
	e.alertsMu.Lock()
	defer e.alertsMu.Unlock()

	alertID, exists := e.alertByOrder[orderID]
	if !exists {
		return
	}
	delete(e.alertByOrder, orderID)
	delete(e.alerts, alertID)
}

func (e *Exchange) refreshAlertQuantity(orderID string, quantity int64) {
	e.alertsMu.RLock()
	defer e.alertsMu.RUnlock()

	alertID, exists := e.alertByOrder[orderID]
	if !exists {
		return
	}
	if alert := e.alerts[alertID]; alert != nil {
		alert.setQuantity(quantity)
	}
}

func (e *Exchange) dropOrder(orderID string) {
	e.ordersMu.Lock()
	delete(e.orders, orderID)
	e.ordersMu.Unlock()
}

func (e *Exchange) recordTrade(trade Trade) {
	e.tradesMu.Lock()
	e.trades = append(e.trades, trade)
	e.tradesMu.Unlock()

	atomic.AddInt64(&e.tradesExecuted, 1)

	log.Info().
		Str("trade_id", trade.TradeID).
		Str("symbol", trade.Symbol).
		Int64("quantity", trade.Quantity).
		Int64("price", trade.Price).
		Str("buyer", trade.BuyerID).
		Str("seller", trade.SellerID).
		Msg("Trade executed")
}
