package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all session routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.HandleListSessions)
		r.Post("/cleanup", h.HandleCleanupStuck)
		r.Get("/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetSession(w, r, chi.URLParam(r, "sessionID"))
		})
	})
}
