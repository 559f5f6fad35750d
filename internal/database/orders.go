package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `o.id, o.order_number, o.status, o.total_amount, o.placed_by, u.full_name, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.PlacedBy, &o.WaiterName, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders
`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (order_number, status, total_amount, placed_by)
VALUES ($1, $2, $3, $4)
RETURNING id, order_number, status, total_amount, placed_by, created_at, updated_at
`

type CreateOrderParams struct {
	OrderNumber int32
	Status      string
	TotalAmount pgtype.Numeric
	PlacedBy    uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.OrderNumber, arg.Status, arg.TotalAmount, arg.PlacedBy)
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.PlacedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders o
JOIN users u ON u.id = o.placed_by
WHERE o.id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// getOrderForUpdate locks the order row so concurrent transitions on the
// same order serialize. FOR NO KEY UPDATE keeps item inserts unblocked.
const getOrderForUpdate = `
SELECT id, order_number, status, total_amount, placed_by, created_at, updated_at
FROM orders
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.PlacedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders o
JOIN users u ON u.id = o.placed_by
WHERE ($1::text IS NULL OR o.status = $1)
  AND ($2::uuid IS NULL OR o.placed_by = $2)
ORDER BY o.created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	Status   pgtype.Text
	PlacedBy pgtype.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.PlacedBy, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// updateOrderStatus is a compare-and-swap: the row is only updated when it
// still carries the status the caller validated against. pgx.ErrNoRows on
// a known-good id means a concurrent writer got there first.
const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING id, order_number, status, total_amount, placed_by, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	PrevStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus)
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.PlacedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1
`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, note, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, menu_item_id, name, price, quantity, note, done, position
`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Quantity   int32
	Note       pgtype.Text
	Position   int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.Price, arg.Quantity, arg.Note, arg.Position)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Price, &it.Quantity, &it.Note, &it.Done, &it.Position)
	return it, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, menu_item_id, name, price, quantity, note, done, position
FROM order_items
WHERE order_id = $1
ORDER BY position
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Price, &it.Quantity, &it.Note, &it.Done, &it.Position); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteOrderItemsByOrder = `
DELETE FROM order_items
WHERE order_id = $1
`

func (q *Queries) DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItemsByOrder, orderID)
	return err
}

const setOrderItemDone = `
UPDATE order_items
SET done = $3
WHERE id = $1 AND order_id = $2
RETURNING id, order_id, menu_item_id, name, price, quantity, note, done, position
`

type SetOrderItemDoneParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Done    bool
}

func (q *Queries) SetOrderItemDone(ctx context.Context, arg SetOrderItemDoneParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, setOrderItemDone, arg.ID, arg.OrderID, arg.Done)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Price, &it.Quantity, &it.Note, &it.Done, &it.Position)
	return it, err
}

const getOrderItemProgress = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE done)
FROM order_items
WHERE order_id = $1
`

type GetOrderItemProgressRow struct {
	Total int64
	Done  int64
}

func (q *Queries) GetOrderItemProgress(ctx context.Context, orderID uuid.UUID) (GetOrderItemProgressRow, error) {
	var r GetOrderItemProgressRow
	err := q.db.QueryRow(ctx, getOrderItemProgress, orderID).Scan(&r.Total, &r.Done)
	return r, err
}

// updateOrderTotal recomputes the stored total from the items. The total
// is never taken from a request body; this keeps the amount and the items
// consistent inside whatever transaction mutated the items.
const updateOrderTotal = `
UPDATE orders
SET total_amount = COALESCE((
        SELECT SUM(price * quantity) FROM order_items WHERE order_id = $1
    ), 0),
    updated_at = NOW()
WHERE id = $1
RETURNING total_amount
`

func (q *Queries) UpdateOrderTotal(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var total pgtype.Numeric
	err := q.db.QueryRow(ctx, updateOrderTotal, orderID).Scan(&total)
	return total, err
}
