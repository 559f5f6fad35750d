package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/royal-iskon/api/internal/middleware"
	"github.com/royal-iskon/api/internal/service"
	"github.com/royal-iskon/api/internal/ws"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc       OrderServicer
	store     PaymentStore
	orders    *OrderHandler
	qrPayload string
}

// NewPaymentHandler creates a new PaymentHandler. orders is borrowed for
// the shared board/broadcast plumbing on completion.
func NewPaymentHandler(svc OrderServicer, store PaymentStore, orders *OrderHandler, qrPayload string) *PaymentHandler {
	return &PaymentHandler{svc: svc, store: store, orders: orders, qrPayload: qrPayload}
}

// RegisterRoutes registers the endpoints every role may call.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{id}/payments", h.List)
	r.Get("/payments/qr", h.QR)
}

// RegisterWaiterRoutes registers order completion. Waiter and admin only.
func (h *PaymentHandler) RegisterWaiterRoutes(r chi.Router) {
	r.Post("/orders/{id}/complete", h.Complete)
}

// --- Request / Response types ---

type completeOrderRequest struct {
	Method     string `json:"method"`
	CashAmount string `json:"cash_amount"`
}

type paymentResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	Method     string    `json:"method"`
	Amount     string    `json:"amount"`
	ReceivedBy uuid.UUID `json:"received_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type qrResponse struct {
	Payload string `json:"payload"`
}

// --- Handlers ---

// Complete handles POST /orders/{id}/complete: settle the bill and close
// the order in one step.
func (h *PaymentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payment, ok := parsePayment(w, req.Method, req.CashAmount)
	if !ok {
		return
	}

	result, err := h.svc.Transition(r.Context(), service.TransitionRequest{
		OrderID:   orderID,
		ActorID:   claims.UserID,
		Role:      claims.Role,
		NewStatus: enum.OrderStatusCompleted,
		Payment:   payment,
	})
	if err != nil {
		h.orders.writeServiceError(w, "complete order", err)
		return
	}

	resp := toOrderResponse(result.Order, nil)
	if !result.NoOp {
		h.orders.board.ApplyStatusChange(result.Order.ID, result.Order.Status)
		h.orders.broadcast(ws.EventOrderUpdated, resp)
	}

	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponses(payments))
}

// QR handles GET /payments/qr. The restaurant uses one static QR code
// for all online payments; the amount is typed into the UPI app.
func (h *PaymentHandler) QR(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, qrResponse{Payload: h.qrPayload})
}

// --- Helpers ---

func toPaymentResponses(payments []database.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentResponse{
			ID:         p.ID,
			OrderID:    p.OrderID,
			Method:     p.Method,
			Amount:     numericToString(p.Amount),
			ReceivedBy: p.ReceivedBy,
			CreatedAt:  p.CreatedAt,
		}
	}
	return resp
}
