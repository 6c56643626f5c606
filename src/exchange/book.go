package exchange

import (
	"sync"

	"github.com/google/btree"
)

// bookEntry is a resting order's position in a book. The sequence number
// is assigned once at first insertion and kept across set-aside/re-insert,
// so time priority within a price level survives the matching scan.
type bookEntry struct {
	order *Order
	price int64 // price at rest time; the order is removed before any reprice
	seq   uint64
	item  btree.Item
}

type bidItem struct {
	*bookEntry
}

// Less inverts price ordering so tree.Min() is the highest bid.
func (b *bidItem) Less(than btree.Item) bool {
	other := than.(*bidItem)
	if b.price != other.price {
		return b.price > other.price
	}
	return b.seq < other.seq
}

type askItem struct {
	*bookEntry
}

func (a *askItem) Less(than btree.Item) bool {
	other := than.(*askItem)
	if a.price != other.price {
		return a.price < other.price
	}
	return a.seq < other.seq
}

// OrderBook holds the resting orders of one symbol. All mutation happens on
// the engine goroutine; the mutex exists so concurrent readers can take
// consistent snapshots.
type OrderBook struct {
	Symbol string

	mu      sync.RWMutex
	bids    *btree.BTree
	asks    *btree.BTree
	entries map[string]*bookEntry
	nextSeq uint64
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:  symbol,
		bids:    btree.New(32),
		asks:    btree.New(32),
		entries: make(map[string]*bookEntry),
	}
}

func (ob *OrderBook) treeFor(side Side) *btree.BTree {
	if side == SideBuy {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) add(order *Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	entry := &bookEntry{
		order: order,
		price: order.PriceCents(),
		seq:   ob.nextSeq,
	}
	ob.nextSeq++

	if order.Side == SideBuy {
		entry.item = &bidItem{entry}
	} else {
		entry.item = &askItem{entry}
	}

	ob.treeFor(order.Side).ReplaceOrInsert(entry.item)
	ob.entries[order.ID] = entry
}

// popBest removes and returns the best-priced entry of the given side, or
// nil when that side is empty.
func (ob *OrderBook) popBest(side Side) *bookEntry {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	tree := ob.treeFor(side)
	item := tree.Min()
	if item == nil {
		return nil
	}
	tree.Delete(item)

	entry := entryOf(item)
	delete(ob.entries, entry.order.ID)
	return entry
}

// reinsert restores an entry taken by popBest, keeping its original
// sequence number.
func (ob *OrderBook) reinsert(entry *bookEntry) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.treeFor(entry.order.Side).ReplaceOrInsert(entry.item)
	ob.entries[entry.order.ID] = entry
}

func (ob *OrderBook) remove(orderID string) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	entry, exists := ob.entries[orderID]
	if !exists {
		return false
	}
	ob.treeFor(entry.order.Side).Delete(entry.item)
	delete(ob.entries, orderID)
	return true
}

func (ob *OrderBook) sideLen(side Side) int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.treeFor(side).Len()
}

func entryOf(item btree.Item) *bookEntry {
	switch v := item.(type) {
	case *bidItem:
		return v.bookEntry
	case *askItem:
		return v.bookEntry
	}
	return nil
}

// BookLevel aggregates resting quantity at one price.
type BookLevel struct {
	Price    int64
	Quantity int64
	Orders   int
}

// BookSnapshot is the diagnostic read-only view of a book: best bid/ask
// plus depth, bids descending and asks ascending.
type BookSnapshot struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp int64
}

func (ob *OrderBook) snapshot(depth int) (bids, asks []BookLevel) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bids = collectLevels(ob.bids, depth)
	asks = collectLevels(ob.asks, depth)
	return bids, asks
}

func collectLevels(tree *btree.BTree, depth int) []BookLevel {
	levels := make([]BookLevel, 0, depth)
	tree.Ascend(func(item btree.Item) bool {
		entry := entryOf(item)
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.price {
			levels[len(levels)-1].Quantity += entry.order.Remaining()
			levels[len(levels)-1].Orders++
			return true
		}
		if len(levels) >= depth {
			return false
		}
		levels = append(levels, BookLevel{
			Price:    entry.price,
			Quantity: entry.order.Remaining(),
			Orders:   1,
		})
		return true
	})
	return levels
}
