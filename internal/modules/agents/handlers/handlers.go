// Package handlers provides HTTP handlers for agent management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/modules/agents"
)

// Handler handles agent HTTP requests
type Handler struct {
	service *agents.Service
	log     zerolog.Logger
}

// NewHandler creates a new agents handler
func NewHandler(service *agents.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "agents").Logger(),
	}
}

type agentRequest struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// HandleListAgents handles GET /api/agents
func (h *Handler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list agents")
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"agents": list,
			"count":  len(list),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreateAgent handles POST /api/agents
func (h *Handler) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agent, err := h.service.Create(req.Name, req.Mode)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create agent")
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": agent,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAgent handles GET /api/agents/{agentID}
func (h *Handler) HandleGetAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	agent, err := h.service.Get(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": agent,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleUpdateAgent handles PATCH /api/agents/{agentID}
func (h *Handler) HandleUpdateAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	agent, err := h.service.Update(agentID, req.Name, req.Mode)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": agent,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSuspendAgent handles POST /api/agents/{agentID}/suspend
func (h *Handler) HandleSuspendAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	agent, err := h.service.Suspend(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": agent,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleResumeAgent handles POST /api/agents/{agentID}/resume
func (h *Handler) HandleResumeAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	agent, err := h.service.Resume(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": agent,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteAgent handles DELETE /api/agents/{agentID}
func (h *Handler) HandleDeleteAgent(w http.ResponseWriter, r *http.Request, agentID string) {
	if err := h.service.Delete(agentID); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"deleted": agentID,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var notFound *domain.AgentNotFoundError
	var invalidMode *domain.InvalidModeError

	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalidMode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
