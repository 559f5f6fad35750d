package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/royal-iskon/api/internal/board"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/royal-iskon/api/internal/middleware"
	"github.com/royal-iskon/api/internal/service"
	"github.com/royal-iskon/api/internal/ws"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	ReplaceItems(ctx context.Context, req service.ReplaceItemsRequest) (*service.OrderResult, error)
	Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	SetItemDone(ctx context.Context, req service.ItemDoneRequest) (*service.ItemDoneResult, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// Broadcaster pushes realtime events to the connected order screens.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	board *board.Board
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, b *board.Board, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, board: b, hub: hub}
}

// RegisterRoutes registers the order endpoints every role may call.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
}

// RegisterWaiterRoutes registers order creation and editing. Waiter and
// admin only.
func (h *OrderHandler) RegisterWaiterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Put("/orders/{id}/items", h.ReplaceItems)
}

// RegisterCookRoutes registers the kitchen endpoints. Cook only.
func (h *OrderHandler) RegisterCookRoutes(r chi.Router) {
	r.Patch("/orders/{id}/items/{itemID}/done", h.SetItemDone)
}

// RegisterAdminRoutes registers hard deletion. Admin only.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/orders/{id}", h.Delete)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Note       string `json:"note"`
}

type replaceItemsRequest struct {
	Items []orderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	Method     string `json:"method"`
	CashAmount string `json:"cash_amount"`
}

type setItemDoneRequest struct {
	Done bool `json:"done"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	OrderNumber int32               `json:"order_number"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	WaiterName  string              `json:"waiter_name"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	Quantity int32     `json:"quantity"`
	Note     *string   `json:"note"`
	Done     bool      `json:"done"`
}

// orderDetailResponse extends orderResponse with payments for the GET
// detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type itemDoneResponse struct {
	Item     orderItemResponse `json:"item"`
	Order    orderResponse     `json:"order"`
	Progress int               `json:"progress"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		PlacedBy: claims.UserID,
		Items:    toServiceItems(req.Items),
	})
	if err != nil {
		h.writeServiceError(w, "create order", err)
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	// The write queries don't join users; fill the name from the token.
	resp.WaiterName = claims.FullName

	h.board.ApplyCreated(board.Order{
		ID:          result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
		Status:      result.Order.Status,
		TotalAmount: resp.TotalAmount,
		WaiterName:  claims.FullName,
		CreatedAt:   result.Order.CreatedAt,
	})
	h.broadcast(ws.EventOrderCreated, resp)

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders with optional ?status=, ?mine=, ?limit=, ?offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := enum.NormalizeStatus(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: status, Valid: true}
	}
	if r.URL.Query().Get("mine") == "true" {
		params.PlacedBy = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(order, items),
		Payments:      toPaymentResponses(payments),
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReplaceItems handles PUT /orders/{id}/items. Only preparing orders can
// be edited.
func (h *OrderHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req replaceItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.ReplaceItems(r.Context(), service.ReplaceItemsRequest{
		OrderID: orderID,
		Items:   toServiceItems(req.Items),
	})
	if err != nil {
		h.writeServiceError(w, "replace order items", err)
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	h.broadcast(ws.EventOrderUpdated, resp)

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status. Completion carries the
// payment in the same request body.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	svcReq := service.TransitionRequest{
		OrderID:   orderID,
		ActorID:   claims.UserID,
		Role:      claims.Role,
		NewStatus: req.Status,
	}
	if req.Method != "" {
		payment, ok := parsePayment(w, req.Method, req.CashAmount)
		if !ok {
			return
		}
		svcReq.Payment = payment
	}

	result, err := h.svc.Transition(r.Context(), svcReq)
	if err != nil {
		h.writeServiceError(w, "update order status", err)
		return
	}

	resp := toOrderResponse(result.Order, nil)
	if !result.NoOp {
		h.board.ApplyStatusChange(result.Order.ID, result.Order.Status)
		h.broadcast(ws.EventOrderUpdated, resp)
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetItemDone handles PATCH /orders/{id}/items/{itemID}/done.
func (h *OrderHandler) SetItemDone(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req setItemDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.SetItemDone(r.Context(), service.ItemDoneRequest{
		OrderID: orderID,
		ItemID:  itemID,
		Done:    req.Done,
	})
	if err != nil {
		h.writeServiceError(w, "set item done", err)
		return
	}

	if result.StatusChanged {
		h.board.ApplyStatusChange(result.Order.ID, result.Order.Status)
	}
	h.broadcast(ws.EventOrderUpdated, itemDoneResponse{
		Item:     toOrderItemResponse(result.Item),
		Order:    toOrderResponse(result.Order, nil),
		Progress: result.Progress,
	})

	writeJSON(w, http.StatusOK, itemDoneResponse{
		Item:     toOrderItemResponse(result.Item),
		Order:    toOrderResponse(result.Order, nil),
		Progress: result.Progress,
	})
}

// Delete handles DELETE /orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), orderID); err != nil {
		h.writeServiceError(w, "delete order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toServiceItems(items []orderItemRequest) []service.OrderItemRequest {
	out := make([]service.OrderItemRequest, len(items))
	for i, item := range items {
		out[i] = service.OrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Note:       item.Note,
		}
	}
	return out
}

func parsePayment(w http.ResponseWriter, method, cashAmount string) (*service.PaymentRequest, bool) {
	if !enum.ValidPaymentMethod(method) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method must be cash or online"})
		return nil, false
	}
	payment := &service.PaymentRequest{Method: method}
	if method == enum.PaymentMethodCash {
		amount, err := decimal.NewFromString(cashAmount)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cash_amount"})
			return nil, false
		}
		payment.CashAmount = amount
	}
	return payment, true
}

// writeServiceError maps service sentinel errors to HTTP status codes.
func (h *OrderHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrRoleNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderNotEditable),
		errors.Is(err, service.ErrOrderClosed),
		errors.Is(err, service.ErrItemsNotDone):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrAmountMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrMenuItemInactive),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrInvalidMethod):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *OrderHandler) broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: eventType, Payload: data})
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalAmount: numericToString(o.TotalAmount),
		WaiterName:  o.WaiterName,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if items != nil {
		resp.Items = make([]orderItemResponse, len(items))
		for i, item := range items {
			resp.Items[i] = toOrderItemResponse(item)
		}
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:       item.ID,
		Name:     item.Name,
		Price:    numericToString(item.Price),
		Quantity: item.Quantity,
		Note:     textPtr(item.Note),
		Done:     item.Done,
	}
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
