// Package handlers provides HTTP handlers for portfolio queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/modules/agents"
	"github.com/aristath/overseer/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	ledger *ledger.Service
	agents *agents.Service
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(ledgerService *ledger.Service, agentService *agents.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledgerService,
		agents: agentService,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetPositions handles GET /api/ledger/{agentID}/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request, agentID string) {
	if _, err := h.agents.Get(agentID); err != nil {
		h.respondError(w, err)
		return
	}

	positions, err := h.ledger.Holdings(agentID)
	if err != nil {
		h.log.Error().Err(err).Str("agent_id", agentID).Msg("Failed to load positions")
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"agent_id":  agentID,
			"positions": positions,
			"count":     len(positions),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPortfolio handles GET /api/ledger/{agentID}/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request, agentID string) {
	agent, err := h.agents.Get(agentID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	positions, err := h.ledger.Holdings(agentID)
	if err != nil {
		h.log.Error().Err(err).Str("agent_id", agentID).Msg("Failed to load positions")
		h.respondError(w, err)
		return
	}

	// Without a market snapshot positions are carried at cost
	positionsValue := h.ledger.PositionsValue(positions, nil)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"agent_id":        agentID,
			"cash":            agent.Cash,
			"positions":       positions,
			"positions_value": positionsValue,
			"total_value":     agent.Cash + positionsValue,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var notFound *domain.AgentNotFoundError

	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
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
