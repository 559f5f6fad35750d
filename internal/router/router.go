package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/royal-iskon/api/internal/board"
	"github.com/royal-iskon/api/internal/config"
	"github.com/royal-iskon/api/internal/database"
	"github.com/royal-iskon/api/internal/enum"
	"github.com/royal-iskon/api/internal/handler"
	mw "github.com/royal-iskon/api/internal/middleware"
	"github.com/royal-iskon/api/internal/service"
	"github.com/royal-iskon/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, b *board.Board) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:8081", // Expo dev server
			"http://localhost:19006",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore)
	orderHandler := handler.NewOrderHandler(orderService, queries, b, hub)
	paymentHandler := handler.NewPaymentHandler(orderService, queries, orderHandler, cfg.PaymentQRPayload)
	boardHandler := handler.NewBoardHandler(b)
	categoryHandler := handler.NewCategoryHandler(queries)
	menuHandler := handler.NewMenuHandler(queries)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)

		// Shared reads: every authenticated role sees the menu and orders.
		categoryHandler.RegisterReadRoutes(r)
		menuHandler.RegisterReadRoutes(r)
		orderHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
		boardHandler.RegisterRoutes(r)

		// Waiter routes (admin may stand in for a waiter)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleWaiter, enum.RoleAdmin))
			orderHandler.RegisterWaiterRoutes(r)
			paymentHandler.RegisterWaiterRoutes(r)
		})

		// Cook routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleCook))
			orderHandler.RegisterCookRoutes(r)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))

			userHandler := handler.NewUserHandler(queries)
			userHandler.RegisterRoutes(r)

			categoryHandler.RegisterAdminRoutes(r)
			menuHandler.RegisterAdminRoutes(r)
			orderHandler.RegisterAdminRoutes(r)
			boardHandler.RegisterAdminRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
