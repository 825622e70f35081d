package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all performance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance/{agentID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetValuation(w, r, chi.URLParam(r, "agentID"))
		})
		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetHistory(w, r, chi.URLParam(r, "agentID"))
		})
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetMetrics(w, r, chi.URLParam(r, "agentID"))
		})
	})
}
