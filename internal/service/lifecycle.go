package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/shopspring/decimal"
)

// TransitionRequest asks to move an order to a new status on behalf of a
// staff member. Payment is required when the target status is completed.
type TransitionRequest struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	Role      string
	NewStatus string
	Payment   *PaymentRequest
}

// PaymentRequest is the payment submitted with a completion.
type PaymentRequest struct {
	Method     string
	CashAmount decimal.Decimal
}

// TransitionResult is the order after a transition. NoOp is set when the
// request was absorbed without a change (completing an already-completed
// order).
type TransitionResult struct {
	Order database.Order
	NoOp  bool
}

// ItemDoneRequest marks a single line of an order done or not done.
type ItemDoneRequest struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Done    bool
}

// ItemDoneResult is the updated item plus the order it belongs to, which
// may have advanced to ready when the last item was marked done.
type ItemDoneResult struct {
	Item          database.OrderItem
	Order         database.Order
	Progress      int
	StatusChanged bool
}

// Transition moves an order through its lifecycle: the row is locked, the
// role-gated transition table consulted, and for completion the payment
// reconciled against the stored total, all in one transaction. The status
// update itself is compare-and-swap on the previous status as a second
// guard against a concurrent writer.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	next, ok := enum.NormalizeStatus(req.NewStatus)
	if !ok {
		return nil, ErrInvalidStatus
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

	// Completing a completed order is absorbed, not rejected: the waiter
	// double-tapping the button should not see an error.
	if order.Status == enum.OrderStatusCompleted && next == enum.OrderStatusCompleted {
		return &TransitionResult{Order: order, NoOp: true}, nil
	}

	if err := ValidateTransition(req.Role, order.Status, next); err != nil {
		return nil, err
	}

	switch next {
	case enum.OrderStatusReady:
		progress, err := store.GetOrderItemProgress(ctx, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("get item progress: %w", err)
		}
		if progress.Total == 0 || progress.Done < progress.Total {
			return nil, ErrItemsNotDone
		}

	case enum.OrderStatusCompleted:
		if req.Payment == nil {
			return nil, ErrPaymentRequired
		}
		if err := ReconcilePayment(req.Payment.Method, numericToDecimal(order.TotalAmount), req.Payment.CashAmount); err != nil {
			return nil, err
		}
		amount := numericToDecimal(order.TotalAmount)
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:    req.OrderID,
			Method:     req.Payment.Method,
			Amount:     decimalToNumeric(amount),
			ReceivedBy: req.ActorID,
		}); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         req.OrderID,
		Status:     next,
		PrevStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &TransitionResult{Order: updated}, nil
}

// SetItemDone toggles the done flag on one line of an active order. When
// the last item of a preparing order is marked done the order advances to
// ready automatically. Un-marking an item never moves a ready order back;
// only the kitchen's explicit actions go forward.
func (s *OrderService) SetItemDone(ctx context.Context, req ItemDoneRequest) (*ItemDoneResult, error) {
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
	if enum.IsTerminal(order.Status) {
		return nil, ErrOrderClosed
	}

	item, err := store.SetOrderItemDone(ctx, database.SetOrderItemDoneParams{
		ID:      req.ItemID,
		OrderID: req.OrderID,
		Done:    req.Done,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("set item done: %w", err)
	}

	progress, err := store.GetOrderItemProgress(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get item progress: %w", err)
	}
	pct := Progress(progress.Done, progress.Total)

	result := &ItemDoneResult{
		Item:     item,
		Order:    order,
		Progress: pct,
	}

	if pct == 100 && order.Status == enum.OrderStatusPreparing {
		updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         req.OrderID,
			Status:     enum.OrderStatusReady,
			PrevStatus: enum.OrderStatusPreparing,
		})
		if err != nil {
			return nil, fmt.Errorf("advance to ready: %w", err)
		}
		result.Order = updated
		result.StatusChanged = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return result, nil
}
