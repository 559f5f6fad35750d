package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/royal-iskon/api/internal/auth"
	"github.com/royal-iskon/api/internal/board"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/royal-iskon/api/internal/handler"
	"github.com/royal-iskon/api/internal/middleware"
	"github.com/royal-iskon/api/internal/service"
	"github.com/royal-iskon/api/internal/ws"
)

const testJWTSecret = "test-secret-for-orders"

// --- Mocks ---

// mockOrderService implements handler.OrderServicer with configurable behavior.
type mockOrderService struct {
	createOrderFn  func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	replaceItemsFn func(ctx context.Context, req service.ReplaceItemsRequest) (*service.OrderResult, error)
	transitionFn   func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	setItemDoneFn  func(ctx context.Context, req service.ItemDoneRequest) (*service.ItemDoneResult, error)
	deleteOrderFn  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
	return m.createOrderFn(ctx, req)
}
func (m *mockOrderService) ReplaceItems(ctx context.Context, req service.ReplaceItemsRequest) (*service.OrderResult, error) {
	return m.replaceItemsFn(ctx, req)
}
func (m *mockOrderService) Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
	return m.transitionFn(ctx, req)
}
func (m *mockOrderService) SetItemDone(ctx context.Context, req service.ItemDoneRequest) (*service.ItemDoneResult, error) {
	return m.setItemDoneFn(ctx, req)
}
func (m *mockOrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return m.deleteOrderFn(ctx, id)
}

// mockReadStore implements handler.OrderStore for the read endpoints.
type mockReadStore struct {
	getOrderFn              func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listPaymentsByOrderFn   func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

func (m *mockReadStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockReadStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return m.listOrdersFn(ctx, arg)
}
func (m *mockReadStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrderFn(ctx, orderID)
}
func (m *mockReadStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	return m.listPaymentsByOrderFn(ctx, orderID)
}

// captureHub records broadcast events for assertions.
type captureHub struct {
	mu     sync.Mutex
	events []ws.Event
}

func (c *captureHub) Broadcast(event ws.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureHub) Events() []ws.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ws.Event, len(c.events))
	copy(out, c.events)
	return out
}

// --- Router setup ---

func setupOrderRouter(svc *mockOrderService, store *mockReadStore) (*chi.Mux, *board.Board, *captureHub) {
	b := board.New()
	hub := &captureHub{}
	h := handler.NewOrderHandler(svc, store, b, hub)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.RoleWaiter, enum.RoleAdmin))
			h.RegisterWaiterRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.RoleCook))
			h.RegisterCookRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enum.RoleAdmin))
			h.RegisterAdminRoutes(r)
		})
	})
	return r, b, hub
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.FullName, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func waiterClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), FullName: "Asha Patil", Role: enum.RoleWaiter}
}

func cookClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), FullName: "Ravi Kumar", Role: enum.RoleCook}
}

func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), FullName: "Meera Shah", Role: enum.RoleAdmin}
}

// --- Create tests ---

func sampleOrderResult(status string) *service.OrderResult {
	orderID := uuid.New()
	o := database.Order{ID: orderID, OrderNumber: 12, Status: status}
	_ = o.TotalAmount.Scan("250.00")
	item := database.OrderItem{ID: uuid.New(), OrderID: orderID, Name: "Paneer Tikka", Quantity: 2}
	_ = item.Price.Scan("100.00")
	return &service.OrderResult{Order: o, Items: []database.OrderItem{item}}
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &mockOrderService{
		createOrderFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
			return sampleOrderResult(enum.OrderStatusPreparing), nil
		},
	}
	r, b, hub := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 2},
		},
	}, waiterClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusPreparing {
		t.Errorf("status: got %v, want preparing", resp["status"])
	}
	if resp["waiter_name"] != "Asha Patil" {
		t.Errorf("waiter_name: got %v, want name from token", resp["waiter_name"])
	}

	if len(b.Orders()) != 1 {
		t.Error("created order should be patched onto the board")
	}
	events := hub.Events()
	if len(events) != 1 || events[0].Type != ws.EventOrderCreated {
		t.Errorf("expected one order.created broadcast, got %+v", events)
	}
}

func TestCreateOrder_CookForbidden(t *testing.T) {
	svc := &mockOrderService{}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	}, cookClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := &mockOrderService{}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{},
	}, waiterClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	svc := &mockOrderService{}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	req := httptest.NewRequest("POST", "/orders", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// --- UpdateStatus tests ---

func TestUpdateStatus_CookMarksReady(t *testing.T) {
	orderID := uuid.New()
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
			if req.Role != enum.RoleCook {
				t.Errorf("role: got %v, want cook", req.Role)
			}
			o := database.Order{ID: orderID, OrderNumber: 12, Status: enum.OrderStatusReady}
			_ = o.TotalAmount.Scan("250.00")
			return &service.TransitionResult{Order: o}, nil
		},
	}
	r, _, hub := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH", "/orders/"+orderID.String()+"/status",
		map[string]string{"status": "ready"}, cookClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	events := hub.Events()
	if len(events) != 1 || events[0].Type != ws.EventOrderUpdated {
		t.Errorf("expected one order.updated broadcast, got %+v", events)
	}
}

func TestUpdateStatus_InvalidTransitionMapsTo409(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
			return nil, service.ErrInvalidTransition
		},
	}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "completed"}, waiterClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdateStatus_RoleErrorMapsTo403(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
			return nil, service.ErrRoleNotAllowed
		},
	}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "ready"}, waiterClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestUpdateStatus_AmountMismatchMapsTo422(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
			return nil, service.ErrAmountMismatch
		},
	}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH", "/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "completed", "method": "cash", "cash_amount": "200"}, waiterClaims())

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestUpdateStatus_NoOpSkipsBroadcast(t *testing.T) {
	orderID := uuid.New()
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
			o := database.Order{ID: orderID, Status: enum.OrderStatusCompleted}
			return &service.TransitionResult{Order: o, NoOp: true}, nil
		},
	}
	r, _, hub := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH", "/orders/"+orderID.String()+"/status",
		map[string]string{"status": "completed", "method": "online"}, waiterClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if len(hub.Events()) != 0 {
		t.Error("a no-op completion must not broadcast")
	}
}

// --- SetItemDone tests ---

func TestSetItemDone_CookOnly(t *testing.T) {
	svc := &mockOrderService{}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH",
		"/orders/"+uuid.New().String()+"/items/"+uuid.New().String()+"/done",
		map[string]bool{"done": true}, waiterClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestSetItemDone_Success(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	svc := &mockOrderService{
		setItemDoneFn: func(ctx context.Context, req service.ItemDoneRequest) (*service.ItemDoneResult, error) {
			if req.OrderID != orderID || req.ItemID != itemID || !req.Done {
				t.Errorf("unexpected request: %+v", req)
			}
			return &service.ItemDoneResult{
				Item:          database.OrderItem{ID: itemID, OrderID: orderID, Done: true},
				Order:         database.Order{ID: orderID, Status: enum.OrderStatusReady},
				Progress:      100,
				StatusChanged: true,
			}, nil
		},
	}
	r, _, hub := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "PATCH",
		"/orders/"+orderID.String()+"/items/"+itemID.String()+"/done",
		map[string]bool{"done": true}, cookClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["progress"] != float64(100) {
		t.Errorf("progress: got %v, want 100", resp["progress"])
	}
	if len(hub.Events()) != 1 {
		t.Error("item completion should broadcast an update")
	}
}

// --- Get / List tests ---

func TestGetOrder_NotFound(t *testing.T) {
	store := &mockReadStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	r, _, _ := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, r, "GET", "/orders/"+uuid.New().String(), nil, waiterClaims())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_IncludesItemsAndPayments(t *testing.T) {
	orderID := uuid.New()
	store := &mockReadStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			o := database.Order{ID: orderID, OrderNumber: 4, Status: enum.OrderStatusCompleted, WaiterName: "Asha Patil"}
			_ = o.TotalAmount.Scan("250.00")
			return o, nil
		},
		listOrderItemsByOrderFn: func(ctx context.Context, oid uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{{ID: uuid.New(), OrderID: orderID, Name: "Paneer Tikka", Quantity: 2, Done: true}}, nil
		},
		listPaymentsByOrderFn: func(ctx context.Context, oid uuid.UUID) ([]database.Payment, error) {
			p := database.Payment{ID: uuid.New(), OrderID: orderID, Method: enum.PaymentMethodCash}
			_ = p.Amount.Scan("250.00")
			return []database.Payment{p}, nil
		},
	}
	r, _, _ := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, r, "GET", "/orders/"+orderID.String(), nil, waiterClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Errorf("expected 1 item, got %v", resp["items"])
	}
	payments, ok := resp["payments"].([]interface{})
	if !ok || len(payments) != 1 {
		t.Errorf("expected 1 payment, got %v", resp["payments"])
	}
	if resp["total_amount"] != "250.00" {
		t.Errorf("total_amount: got %v, want 250.00", resp["total_amount"])
	}
}

func TestListOrders_StatusFilterNormalized(t *testing.T) {
	var captured database.ListOrdersParams
	store := &mockReadStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			captured = arg
			return nil, nil
		},
	}
	r, _, _ := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, r, "GET", "/orders?status=READY", nil, waiterClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !captured.Status.Valid || captured.Status.String != enum.OrderStatusReady {
		t.Errorf("status filter: got %+v, want normalized ready", captured.Status)
	}
}

func TestListOrders_InvalidStatusFilter(t *testing.T) {
	store := &mockReadStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			return nil, nil
		},
	}
	r, _, _ := setupOrderRouter(&mockOrderService{}, store)

	rr := doAuthRequest(t, r, "GET", "/orders?status=bogus", nil, waiterClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Delete tests ---

func TestDeleteOrder_AdminOnly(t *testing.T) {
	svc := &mockOrderService{}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "DELETE", "/orders/"+uuid.New().String(), nil, waiterClaims())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestDeleteOrder_Success(t *testing.T) {
	svc := &mockOrderService{
		deleteOrderFn: func(ctx context.Context, id uuid.UUID) error { return nil },
	}
	r, _, _ := setupOrderRouter(svc, &mockReadStore{})

	rr := doAuthRequest(t, r, "DELETE", "/orders/"+uuid.New().String(), nil, adminClaims())
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
}
