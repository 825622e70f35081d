package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/{agentID}/positions", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPositions(w, r, chi.URLParam(r, "agentID"))
		})
		r.Get("/{agentID}/portfolio", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetPortfolio(w, r, chi.URLParam(r, "agentID"))
		})
	})
}
