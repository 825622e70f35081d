package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all agent routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Get("/", h.HandleListAgents)
		r.Post("/", h.HandleCreateAgent)

		r.Route("/{agentID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetAgent(w, r, chi.URLParam(r, "agentID"))
			})
			r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleUpdateAgent(w, r, chi.URLParam(r, "agentID"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeleteAgent(w, r, chi.URLParam(r, "agentID"))
			})
			r.Post("/suspend", func(w http.ResponseWriter, r *http.Request) {
				h.HandleSuspendAgent(w, r, chi.URLParam(r, "agentID"))
			})
			r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
				h.HandleResumeAgent(w, r, chi.URLParam(r, "agentID"))
			})
		})
	})
}
