package exchange

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Alert advertises a resting sell order priced below the alert threshold.
// Price and Quantity mirror the underlying order while it partially fills.
// The claimed flag is monotonic: once set it never reverts, and the flag
// transition under mu is the sole arbiter of the claim race. The flag
// itself is stored atomically so snapshot readers never contend with a
// claim in progress; mu only serializes the claim attempts.
type Alert struct {
	ID        string
	OrderID   string
	Symbol    string
	SellerID  string
	CreatedAt int64
	Price     int64 // cents, atomic
	Quantity  int64 // atomic

	mu      sync.Mutex // serializes claim attempts
	claimed atomic.Bool
}

func newAlert(order *Order) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		SellerID:  order.TraderID,
		CreatedAt: time.Now().UnixMilli(),
		Price:     order.PriceCents(),
		Quantity:  order.Remaining(),
	}
}

func (a *Alert) Claimed() bool {
	return a.claimed.Load()
}

func (a *Alert) setQuantity(quantity int64) {
	atomic.StoreInt64(&a.Quantity, quantity)
}

// AlertView is the copyable snapshot returned by ActiveAlerts.
type AlertView struct {
	ID        string
	OrderID   string
	Symbol    string
	SellerID  string
	Price     int64
	Quantity  int64
	CreatedAt int64
}

func (a *Alert) view() AlertView {
	return AlertView{
		ID:        a.ID,
		OrderID:   a.OrderID,
		Symbol:    a.Symbol,
		SellerID:  a.SellerID,
		Price:     atomic.LoadInt64(&a.Price),
		Quantity:  atomic.LoadInt64(&a.Quantity),
		CreatedAt: a.CreatedAt,
	}
}
