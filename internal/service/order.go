package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrMenuItemInactive  = errors.New("menu item is not available")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotEditable  = errors.New("only preparing orders can be edited")
	ErrItemNotFound      = errors.New("order item not found")
	ErrOrderClosed       = errors.New("order is completed or cancelled")
	ErrInvalidStatus     = errors.New("invalid status")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateOrderTotal(ctx context.Context, id uuid.UUID) (pgtype.Numeric, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	GetOrderItemProgress(ctx context.Context, orderID uuid.UUID) (database.GetOrderItemProgressRow, error)
	SetOrderItemDone(ctx context.Context, arg database.SetOrderItemDoneParams) (database.OrderItem, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	PlacedBy uuid.UUID
	Items    []OrderItemRequest
}

// OrderItemRequest is a single line in an order.
type OrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Note       string
}

// ReplaceItemsRequest replaces the full item list of a preparing order.
type ReplaceItemsRequest struct {
	OrderID uuid.UUID
	Items   []OrderItemRequest
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder validates, snapshots prices off the menu, and creates an
// order atomically. Retries up to maxOrderNumberRetries times on
// order_number unique constraint violations (race condition where
// concurrent transactions get the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// processedItem holds a prepared order item insert.
type processedItem struct {
	params database.CreateOrderItemParams
}

// prepareItems validates the requested lines against the menu and builds
// the insert params. Name and price are copied from the menu item so the
// ticket survives later menu edits.
func prepareItems(ctx context.Context, store OrderStore, items []OrderItemRequest) ([]processedItem, decimal.Decimal, error) {
	total := decimal.Zero
	prepared := make([]processedItem, 0, len(items))

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItem(ctx, menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !menuItem.IsAvailable {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrMenuItemInactive)
		}

		price := numericToDecimal(menuItem.Price)
		total = total.Add(price.Mul(decimal.NewFromInt32(item.Quantity)))

		note := pgtype.Text{}
		if item.Note != "" {
			note = pgtype.Text{String: item.Note, Valid: true}
		}

		prepared = append(prepared, processedItem{
			params: database.CreateOrderItemParams{
				MenuItemID: menuItemID,
				Name:       menuItem.Name,
				Price:      menuItem.Price,
				Quantity:   item.Quantity,
				Note:       note,
				Position:   int32(i),
			},
		})
	}

	return prepared, total, nil
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, total, err := prepareItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber: nextNum,
		Status:      enum.OrderStatusPreparing,
		TotalAmount: decimalToNumeric(total),
		PlacedBy:    req.PlacedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	itemResults := make([]database.OrderItem, 0, len(items))
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemResults = append(itemResults, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// ReplaceItems swaps the full item list of an order that is still
// preparing and recomputes the total from the new lines. The order row is
// locked for the duration so a concurrent status change cannot interleave.
func (s *OrderService) ReplaceItems(ctx context.Context, req ReplaceItemsRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPreparing {
		return nil, ErrOrderNotEditable
	}

	items, _, err := prepareItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	if err := store.DeleteOrderItemsByOrder(ctx, req.OrderID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	itemResults := make([]database.OrderItem, 0, len(items))
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemResults = append(itemResults, item)
	}

	newTotal, err := store.UpdateOrderTotal(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}
	order.TotalAmount = newTotal

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// DeleteOrder removes an order and its items. Admin only; the role check
// lives in the router.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	rows, err := store.DeleteOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return tx.Commit(ctx)
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
