package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all transaction routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.HandleListTransactions)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetTransaction(w, r, chi.URLParam(r, "id"))
		})
	})
}
