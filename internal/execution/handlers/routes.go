package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers execution control routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/execution/{agentID}", func(r chi.Router) {
		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			h.HandleExecute(w, r, chi.URLParam(r, "agentID"))
		})
		r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
			h.HandleStop(w, r, chi.URLParam(r, "agentID"))
		})
	})
}
