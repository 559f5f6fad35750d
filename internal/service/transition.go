package service

import (
	"errors"
	"math"

	"github.com/royal-iskon/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the order lifecycle.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRoleNotAllowed    = errors.New("role not allowed for this transition")
	ErrItemsNotDone      = errors.New("all items must be done before the order is ready")
	ErrPaymentRequired   = errors.New("completion requires a payment")
	ErrInvalidMethod     = errors.New("invalid payment method")
	ErrAmountMismatch    = errors.New("cash amount does not match order total")
)

// allowedTransitions defines the lifecycle table: current status -> next
// status -> roles that may request it. Completed and cancelled are
// terminal and have no entry.
var allowedTransitions = map[string]map[string][]string{
	enum.OrderStatusPreparing: {
		enum.OrderStatusReady:     {enum.RoleCook},
		enum.OrderStatusCancelled: {enum.RoleAdmin},
	},
	enum.OrderStatusReady: {
		enum.OrderStatusCompleted: {enum.RoleWaiter, enum.RoleAdmin},
		enum.OrderStatusCancelled: {enum.RoleAdmin},
	},
}

// ValidateTransition checks the lifecycle table. It distinguishes a
// transition that no role may ever make (ErrInvalidTransition) from one
// that exists but is gated to other roles (ErrRoleNotAllowed), so the
// handlers can answer 409 vs 403.
func ValidateTransition(role, current, next string) error {
	targets, ok := allowedTransitions[current]
	if !ok {
		return ErrInvalidTransition
	}
	roles, ok := targets[next]
	if !ok {
		return ErrInvalidTransition
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return ErrRoleNotAllowed
}

// Progress returns the kitchen completion percentage for an order,
// rounded to the nearest integer. An order with no items has no progress.
func Progress(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// ReconcilePayment gates the ready -> completed transition. Cash must
// match the order total exactly; there is no tolerance and no
// change-making at the table. Online amounts are verified by the payment
// provider, not here.
func ReconcilePayment(method string, total, cashAmount decimal.Decimal) error {
	switch method {
	case enum.PaymentMethodCash:
		if !cashAmount.Equal(total) {
			return ErrAmountMismatch
		}
		return nil
	case enum.PaymentMethodOnline:
		return nil
	}
	return ErrInvalidMethod
}
