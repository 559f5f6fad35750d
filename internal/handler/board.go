package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/royal-iskon/api/internal/board"
)

// BoardHandler serves the live order screens from the in-memory snapshot.
type BoardHandler struct {
	board *board.Board
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(b *board.Board) *BoardHandler {
	return &BoardHandler{board: b}
}

// RegisterRoutes registers the live board endpoint.
func (h *BoardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/board", h.Board)
}

// RegisterAdminRoutes registers the history view. Admin only.
func (h *BoardHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders/history", h.History)
}

// Board handles GET /orders/board: recent orders bucketed by status.
func (h *BoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.GroupByStatus())
}

// History handles GET /orders/history: recent orders bucketed by day.
func (h *BoardHandler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.GroupByDate())
}
