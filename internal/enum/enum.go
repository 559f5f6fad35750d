package enum

import "strings"

// Order lifecycle. Stored lower-case; comparisons on ingress are
// case-insensitive because older app builds sent "Ready"/"READY".
const (
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	RoleWaiter = "waiter"
	RoleCook   = "cook"
	RoleAdmin  = "admin"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodOnline = "online"
)

// NormalizeStatus lower-cases a status string and reports whether it names
// a known order status.
func NormalizeStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case OrderStatusPreparing:
		return OrderStatusPreparing, true
	case OrderStatusReady:
		return OrderStatusReady, true
	case OrderStatusCompleted:
		return OrderStatusCompleted, true
	case OrderStatusCancelled:
		return OrderStatusCancelled, true
	}
	return "", false
}

// IsTerminal reports whether a (normalized) status accepts no further
// transitions.
func IsTerminal(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// ValidRole reports whether the given string is a known staff role.
func ValidRole(role string) bool {
	switch role {
	case RoleWaiter, RoleCook, RoleAdmin:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether the given string is a known method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodOnline:
		return true
	}
	return false
}
