// Package board keeps an in-memory view of recent orders for the live
// kitchen and floor screens. It is fed from the database on a timer and
// patched in place when the API mutates an order, so reads never touch
// Postgres.
package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/royal-iskon/api/internal/enum"
)

// Order is the snapshot shape served to the screens.
type Order struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber int32     `json:"order_number"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	WaiterName  string    `json:"waiter_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Board holds the snapshot. Safe for concurrent use.
type Board struct {
	mu     sync.RWMutex
	orders []Order
	index  map[uuid.UUID]int
}

// New creates an empty Board.
func New() *Board {
	return &Board{index: make(map[uuid.UUID]int)}
}

// Ingest replaces the whole snapshot with an authoritative list, newest
// first. Patches applied since the list was fetched are discarded; the
// next refresh carries them anyway.
func (b *Board) Ingest(orders []Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.orders = make([]Order, len(orders))
	copy(b.orders, orders)
	b.index = make(map[uuid.UUID]int, len(orders))
	for i, o := range b.orders {
		b.index[o.ID] = i
	}
}

// ApplyCreated prepends a new order. Reports false when the order is
// already present, which happens when a refresh landed between the
// insert and the patch; the duplicate is dropped.
func (b *Board) ApplyCreated(order Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.index[order.ID]; ok {
		return false
	}
	b.orders = append([]Order{order}, b.orders...)
	b.index = make(map[uuid.UUID]int, len(b.orders))
	for i, o := range b.orders {
		b.index[o.ID] = i
	}
	return true
}

// ApplyStatusChange updates one order's status in place. Reports false
// when the order is not in the snapshot; the caller should not treat
// that as an error, the order simply predates the window.
func (b *Board) ApplyStatusChange(id uuid.UUID, status string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[id]
	if !ok {
		return false
	}
	b.orders[i].Status = status
	return true
}

// Orders returns a copy of the snapshot, newest first.
func (b *Board) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// GroupByStatus partitions the snapshot into the four lifecycle buckets.
// Status strings are normalized first; anything unrecognized lands in
// preparing so a bad row shows up on the kitchen screen instead of
// vanishing.
func (b *Board) GroupByStatus() map[string][]Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	groups := map[string][]Order{
		enum.OrderStatusPreparing: {},
		enum.OrderStatusReady:     {},
		enum.OrderStatusCompleted: {},
		enum.OrderStatusCancelled: {},
	}
	for _, o := range b.orders {
		status, ok := enum.NormalizeStatus(o.Status)
		if !ok {
			status = enum.OrderStatusPreparing
		}
		groups[status] = append(groups[status], o)
	}
	return groups
}

// GroupByDate buckets the snapshot by calendar day (YYYY-MM-DD, server
// local time), preserving the newest-first order within each day.
func (b *Board) GroupByDate() map[string][]Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	groups := make(map[string][]Order)
	for _, o := range b.orders {
		day := o.CreatedAt.Format("2006-01-02")
		groups[day] = append(groups[day], o)
	}
	return groups
}
