package exchange

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrClosed        = errors.New("exchange is closed")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrUnknownOrder  = errors.New("unknown order")
	ErrUnknownAlert  = errors.New("unknown alert")
	ErrAlertClaimed  = errors.New("alert already claimed")
	ErrOwnAlert      = errors.New("cannot claim own alert")
	ErrOrderGone     = errors.New("order no longer active")
)

// command is the closed set of operations the engine loop applies. Every
// external mutation travels through this sum type so the loop stays the
// single writer of books, registry and alert index.
type command interface {
	isCommand()
}

type newOrderCmd struct{ order *Order }
type cancelCmd struct{ orderID string }
type modifyCmd struct {
	orderID  string
	newPrice int64
}
type claimCmd struct {
	alertID string
	orderID string
	buyerID string
}
type flushCmd struct{ done chan struct{} }

func (newOrderCmd) isCommand() {}
func (cancelCmd) isCommand()   {}
func (modifyCmd) isCommand()   {}
func (claimCmd) isCommand()    {}
func (flushCmd) isCommand()    {}

type Config struct {
	Symbols        []string
	AlertThreshold int64 // cents; sell orders resting strictly below trigger an alert
	QueueSize      int
}

func DefaultConfig() Config {
	cfg := Config{
		Symbols:        []string{"AAPL", "MSFT", "GOOGL", "INTC", "AMD", "NVDA"},
		AlertThreshold: 3000,
		QueueSize:      4096,
	}

	if envSymbols := os.Getenv("EXCHANGE_SYMBOLS"); envSymbols != "" {
		symbols := make([]string, 0)
		for _, s := range strings.Split(envSymbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			cfg.Symbols = symbols
		}
	}

	if envThreshold := os.Getenv("ALERT_PRICE_THRESHOLD"); envThreshold != "" {
		if parsed, err := strconv.ParseInt(envThreshold, 10, 64); err == nil && parsed > 0 {
			cfg.AlertThreshold = parsed
		}
	}

	if envQueue := os.Getenv("COMMAND_QUEUE_SIZE"); envQueue != "" {
		if parsed, err := strconv.Atoi(envQueue); err == nil && parsed > 0 {
			cfg.QueueSize = parsed
		}
	}

	return cfg
}

// Exchange is the matching engine. A single goroutine started by
// NewExchange consumes the command channel in FIFO order and is the only
// writer of order books, the order registry and the alert index; callers
// interact through enqueued commands and copied snapshots.
type Exchange struct {
	books     map[string]*OrderBook
	threshold int64

	ordersMu sync.RWMutex
	orders   map[string]*Order

	alertsMu     sync.RWMutex
	alerts       map[string]*Alert
	alertByOrder map[string]string

	tradesMu sync.Mutex
	trades   []Trade

	cmds      chan command
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	ordersSubmitted int64
	ordersCancelled int64
	ordersModified  int64
	tradesExecuted  int64
	alertsCreated   int64
	alertsClaimed   int64
}

func NewExchange(cfg Config) *Exchange {
	e := &Exchange{
		books:        make(map[string]*OrderBook, len(cfg.Symbols)),
		threshold:    cfg.AlertThreshold,
		orders:       make(map[string]*Order),
		alerts:       make(map[string]*Alert),
		alertByOrder: make(map[string]string),
		trades:       make([]Trade, 0),
		cmds:         make(chan command, cfg.QueueSize),
		done:         make(chan struct{}),
	}

	for _, symbol := range cfg.Symbols {
		e.books[symbol] = NewOrderBook(symbol)
	}

	e.wg.Add(1)
	go e.run()

	log.Info().
		Strs("symbols", cfg.Symbols).
		Int64("alert_threshold", cfg.AlertThreshold).
		Int("queue_size", cfg.QueueSize).
		Msg("Exchange engine started")

	return e
}

// Close stops the engine loop. Commands still queued are dropped; there is
// no drain guarantee. Safe to call more than once.
func (e *Exchange) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

// Closed reports whether the engine loop has been stopped.
func (e *Exchange) Closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Exchange) enqueue(cmd command) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.cmds <- cmd:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// SubmitOrder enqueues a new order. Fire-and-forget: a nil error means the
// order was accepted onto the queue, not that it has been matched.
func (e *Exchange) SubmitOrder(order *Order) error {
	if _, exists := e.books[order.Symbol]; !exists {
		return ErrUnknownSymbol
	}
	if err := e.enqueue(newOrderCmd{order: order}); err != nil {
		return err
	}
	atomic.AddInt64(&e.ordersSubmitted, 1)
	return nil
}

// CancelOrder enqueues a cancellation. The registry check is best-effort:
// the order can still disappear before the command is applied, in which
// case the engine treats it as a no-op.
func (e *Exchange) CancelOrder(orderID string) error {
	if !e.orderExists(orderID) {
		return ErrUnknownOrder
	}
	return e.enqueue(cancelCmd{orderID: orderID})
}

// ModifyOrder enqueues a reprice. The new price is re-matched against the
// opposite book when the command is applied.
func (e *Exchange) ModifyOrder(orderID string, newPrice int64) error {
	if !e.orderExists(orderID) {
		return ErrUnknownOrder
	}
	return e.enqueue(modifyCmd{orderID: orderID, newPrice: newPrice})
}

// ClaimAlert runs the synchronous first phase of the claim protocol: under
// the per-alert lock it re-validates the sell order, flips the claimed flag
// and enqueues the trade for the engine loop. Exactly one caller gets a nil
// error per alert; everyone else gets a sentinel describing why they lost.
func (e *Exchange) ClaimAlert(alertID, buyerID string) error {
	e.alertsMu.RLock()
	alert := e.alerts[alertID]
	e.alertsMu.RUnlock()

	if alert == nil {
		return ErrUnknownAlert
	}
	if alert.SellerID == buyerID {
		return ErrOwnAlert
	}

	alert.mu.Lock()
	defer alert.mu.Unlock()

	if alert.claimed.Load() {
		return ErrAlertClaimed
	}

	e.ordersMu.RLock()
	order := e.orders[alert.OrderID]
	e.ordersMu.RUnlock()

	if order == nil || order.Remaining() <= 0 {
		return ErrOrderGone
	}

	alert.claimed.Store(true)
	if err := e.enqueue(claimCmd{alertID: alertID, orderID: alert.OrderID, buyerID: buyerID}); err != nil {
		return err
	}

	atomic.AddInt64(&e.alertsClaimed, 1)
	return nil
}

// TradeHistory returns a point-in-time copy of the ledger in insertion
// order.
func (e *Exchange) TradeHistory() []Trade {
	e.tradesMu.Lock()
	defer e.tradesMu.Unlock()

	history := make([]Trade, len(e.trades))
	copy(history, e.trades)
	return history
}

// ActiveAlerts returns unclaimed alerts not owned by the requesting trader.
// The index lock is released before any per-alert state is read, so a slow
// reader can never hold up the engine loop's index writes.
func (e *Exchange) ActiveAlerts(traderID string) []AlertView {
	e.alertsMu.RLock()
	snapshot := make([]*Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		snapshot = append(snapshot, alert)
	}
	e.alertsMu.RUnlock()

	views := make([]AlertView, 0, len(snapshot))
	for _, alert := range snapshot {
		if !alert.Claimed() && alert.SellerID != traderID {
			views = append(views, alert.view())
		}
	}
	return views
}

// Order returns a snapshot of a live order.
func (e *Exchange) Order(orderID string) (OrderView, error) {
	e.ordersMu.RLock()
	order := e.orders[orderID]
	e.ordersMu.RUnlock()

	if order == nil {
		return OrderView{}, ErrUnknownOrder
	}
	return order.view(), nil
}

// BookSnapshot returns best bid/ask and depth for one symbol.
func (e *Exchange) BookSnapshot(symbol string, depth int) (BookSnapshot, error) {
	book, exists := e.books[symbol]
	if !exists {
		return BookSnapshot{}, ErrUnknownSymbol
	}
	if depth <= 0 {
		depth = 10
	}

	bids, asks := book.snapshot(depth)
	return BookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Symbols lists the tradeable instruments fixed at startup.
func (e *Exchange) Symbols() []string {
	symbols := make([]string, 0, len(e.books))
	for symbol := range e.books {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Flush blocks until every command enqueued before the call has been
// applied. Diagnostic barrier; returns ErrClosed once the engine stopped.
func (e *Exchange) Flush() error {
	done := make(chan struct{})
	if err := e.enqueue(flushCmd{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

type Stats struct {
	OrdersSubmitted int64
	OrdersResting   int64
	OrdersCancelled int64
	OrdersModified  int64
	TradesExecuted  int64
	AlertsActive    int64
	AlertsCreated   int64
	AlertsClaimed   int64
}

func (e *Exchange) Stats() Stats {
	e.ordersMu.RLock()
	resting := int64(len(e.orders))
	e.ordersMu.RUnlock()

	e.alertsMu.RLock()
	alertsActive := int64(len(e.alerts))
	e.alertsMu.RUnlock()

	return Stats{
		OrdersSubmitted: atomic.LoadInt64(&e.ordersSubmitted),
		OrdersResting:   resting,
		OrdersCancelled: atomic.LoadInt64(&e.ordersCancelled),
		OrdersModified:  atomic.LoadInt64(&e.ordersModified),
		TradesExecuted:  atomic.LoadInt64(&e.tradesExecuted),
		AlertsActive:    alertsActive,
		AlertsCreated:   atomic.LoadInt64(&e.alertsCreated),
		AlertsClaimed:   atomic.LoadInt64(&e.alertsClaimed),
	}
}

func (e *Exchange) orderExists(orderID string) bool {
	e.ordersMu.RLock()
	defer e.ordersMu.RUnlock()
	_, exists := e.orders[orderID]
	return exists
}
