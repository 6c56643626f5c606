package exchange

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a limit order submitted by a trader. ID, TraderID, Symbol and
// Side never change; Price, Quantity and CreatedAt are mutated only by the
// engine goroutine but read from other goroutines (claim validation, book
// snapshots), so access goes through the atomic accessors below.
type Order struct {
	ID        string
	TraderID  string
	Symbol    string
	Side      Side
	Price     int64 // cents, atomic
	Quantity  int64 // remaining shares, atomic
	CreatedAt int64 // unix millis, atomic (reset on modify)
}

func NewOrder(symbol string, side Side, price, quantity int64, traderID string) *Order {
	return &Order{
		ID:        uuid.New().String(),
		TraderID:  traderID,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: time.Now().UnixMilli(),
	}
}

func (o *Order) Remaining() int64 {
	return atomic.LoadInt64(&o.Quantity)
}

func (o *Order) PriceCents() int64 {
	return atomic.LoadInt64(&o.Price)
}

func (o *Order) CreatedAtMillis() int64 {
	return atomic.LoadInt64(&o.CreatedAt)
}

func (o *Order) setRemaining(quantity int64) {
	atomic.StoreInt64(&o.Quantity, quantity)
}

func (o *Order) setPrice(price int64) {
	atomic.StoreInt64(&o.Price, price)
}

func (o *Order) resetTimestamp() {
	atomic.StoreInt64(&o.CreatedAt, time.Now().UnixMilli())
}

// OrderView is a point-in-time copy of an order handed to readers.
type OrderView struct {
	ID        string
	TraderID  string
	Symbol    string
	Side      Side
	Price     int64
	Quantity  int64
	CreatedAt int64
}

func (o *Order) view() OrderView {
	return OrderView{
		ID:        o.ID,
		TraderID:  o.TraderID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Price:     o.PriceCents(),
		Quantity:  o.Remaining(),
		CreatedAt: o.CreatedAtMillis(),
	}
}

// Trade records a completed execution. Immutable once appended to the
// ledger; BuyerID and SellerID are never the same trader.
type Trade struct {
	TradeID   string
	Symbol    string
	Quantity  int64
	Price     int64 // cents
	BuyerID   string
	SellerID  string
	Timestamp int64 // unix millis
}

func newTrade(symbol string, quantity, price int64, buyerID, sellerID string) Trade {
	return Trade{
		TradeID:   uuid.New().String(),
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Timestamp: time.Now().UnixMilli(),
	}
}
