// Package handlers provides HTTP handlers for the transaction audit trail.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/modules/trading"
)

// Handler handles transaction HTTP requests
type Handler struct {
	repo *trading.Repository
	log  zerolog.Logger
}

// NewHandler creates a new transactions handler
func NewHandler(repo *trading.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleListTransactions handles GET /api/transactions
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 10000 {
			http.Error(w, "Invalid limit. Must be 1-10000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	agentID := r.URL.Query().Get("agent_id")
	status := r.URL.Query().Get("status")
	sessionID := r.URL.Query().Get("session_id")

	var transactions interface{}
	var count int

	if sessionID != "" {
		list, err := h.repo.ListBySession(sessionID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to query transactions")
			http.Error(w, "Failed to query transactions", http.StatusInternalServerError)
			return
		}
		transactions, count = list, len(list)
	} else {
		list, err := h.repo.List(agentID, status, limit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to query transactions")
			http.Error(w, "Failed to query transactions", http.StatusInternalServerError)
			return
		}
		transactions, count = list, len(list)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"transactions": transactions,
			"count":        count,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetTransaction handles GET /api/transactions/{id}
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	txn, err := h.repo.GetByID(id)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to get transaction")
		http.Error(w, "Failed to get transaction", http.StatusInternalServerError)
		return
	}
	if txn == nil {
		http.Error(w, "Transaction not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": txn,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
