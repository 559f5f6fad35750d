package board

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/royal-iskon/api/internal/database"
	"github.com/shopspring/decimal"
)

// snapshotLimit caps how many orders the screens hold in memory.
const snapshotLimit = 500

// Lister fetches the authoritative order list.
// Satisfied by *database.Queries.
type Lister interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// Refresher periodically re-ingests the board from the database so the
// snapshot converges even if a patch was missed.
type Refresher struct {
	board    *Board
	store    Lister
	interval time.Duration
}

// NewRefresher creates a Refresher. interval must be positive.
func NewRefresher(board *Board, store Lister, interval time.Duration) *Refresher {
	return &Refresher{board: board, store: store, interval: interval}
}

// Run refreshes once immediately and then on every tick until ctx is
// cancelled. Intended to run in its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	orders, err := r.store.ListOrders(ctx, database.ListOrdersParams{
		Limit:  snapshotLimit,
		Offset: 0,
	})
	if err != nil {
		log.Printf("ERROR: refreshing order board: %v", err)
		return
	}
	r.board.Ingest(FromDBOrders(orders))
}

// FromDBOrder converts a database row into the snapshot shape.
func FromDBOrder(o database.Order) Order {
	return Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalAmount: numericToString(o.TotalAmount),
		WaiterName:  o.WaiterName,
		CreatedAt:   o.CreatedAt,
	}
}

// FromDBOrders converts a slice of database rows.
func FromDBOrders(orders []database.Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = FromDBOrder(o)
	}
	return out
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
