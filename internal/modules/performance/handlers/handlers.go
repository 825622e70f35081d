// Package handlers provides HTTP handlers for performance queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/modules/performance"
)

// Handler handles performance HTTP requests
type Handler struct {
	service *performance.Service
	log     zerolog.Logger
}

// NewHandler creates a new performance handler
func NewHandler(service *performance.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "performance").Logger(),
	}
}

// HandleGetValuation handles GET /api/performance/{agentID}
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request, agentID string) {
	valuation, err := h.service.Valuation(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": valuation,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /api/performance/{agentID}/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request, agentID string) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := h.service.History(agentID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"agent_id":  agentID,
			"snapshots": history,
			"count":     len(history),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetMetrics handles GET /api/performance/{agentID}/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request, agentID string) {
	metrics, err := h.service.ComputeMetrics(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": metrics,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var notFound *domain.AgentNotFoundError
	if errors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.log.Error().Err(err).Msg("Performance request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
