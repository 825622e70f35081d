// Package handlers provides HTTP handlers for execution control.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/execution"
)

// Handler handles execution HTTP requests
type Handler struct {
	orchestrator *execution.Orchestrator
	log          zerolog.Logger
}

// NewHandler creates a new execution handler
func NewHandler(orchestrator *execution.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		log:          log.With().Str("handler", "execution").Logger(),
	}
}

type executeRequest struct {
	Mode     string `json:"mode"`
	MaxSteps int    `json:"max_steps"`
}

// HandleExecute handles POST /api/execution/{agentID}/start
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request, agentID string) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.Execute(r.Context(), agentID, req.Mode, req.MaxSteps)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleStop handles POST /api/execution/{agentID}/stop
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request, agentID string) {
	result, err := h.orchestrator.Stop(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var busy *domain.AgentBusyError
	var suspended *domain.AgentSuspendedError
	var notFound *domain.AgentNotFoundError
	var invalidMode *domain.InvalidModeError

	switch {
	case errors.As(err, &busy), errors.As(err, &suspended):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalidMode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("Execution request failed")
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
