// Package handlers provides HTTP handlers for session history and cleanup.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/modules/sessions"
)

// StuckCleaner sweeps stuck sessions and releases their guards.
// Satisfied by the execution orchestrator.
type StuckCleaner interface {
	CleanupStuck(agentID string, timeout time.Duration) ([]sessions.CleanedSession, error)
}

// Handler handles session HTTP requests
type Handler struct {
	lifecycle      *sessions.Lifecycle
	cleaner        StuckCleaner
	defaultTimeout time.Duration
	log            zerolog.Logger
}

// NewHandler creates a new sessions handler
func NewHandler(lifecycle *sessions.Lifecycle, cleaner StuckCleaner, defaultTimeout time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		lifecycle:      lifecycle,
		cleaner:        cleaner,
		defaultTimeout: defaultTimeout,
		log:            log.With().Str("handler", "sessions").Logger(),
	}
}

// HandleListSessions handles GET /api/sessions
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 1000 {
			http.Error(w, "Invalid limit. Must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	list, err := h.lifecycle.List(r.URL.Query().Get("agent_id"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"sessions": list,
			"count":    len(list),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSession handles GET /api/sessions/{sessionID}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.lifecycle.Get(sessionID)
	if err != nil {
		var notFound *domain.SessionNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to get session")
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": session,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

type cleanupRequest struct {
	AgentID        string `json:"agent_id"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

// HandleCleanupStuck handles POST /api/sessions/cleanup. This is an
// operational action: it reports what it fixed, never a user error.
func (h *Handler) HandleCleanupStuck(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	timeout := h.defaultTimeout
	if req.TimeoutMinutes > 0 {
		timeout = time.Duration(req.TimeoutMinutes) * time.Minute
	}

	cleaned, err := h.cleaner.CleanupStuck(req.AgentID, timeout)
	if err != nil {
		h.log.Error().Err(err).Msg("Stuck-session cleanup reported errors")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"cleaned": cleaned,
			"count":   len(cleaned),
		},
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
