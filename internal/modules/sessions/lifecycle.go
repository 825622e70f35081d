package sessions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
)

// TransactionLister supplies the transactions recorded for a session.
// Satisfied by the trading repository.
type TransactionLister interface {
	ListBySession(sessionID string) ([]domain.Transaction, error)
}

// CleanedSession identifies a session force-failed by a cleanup pass
type CleanedSession struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
}

// Lifecycle drives session state transitions. Every transition pairs the
// session write with the matching agent status write in one transaction.
type Lifecycle struct {
	repo   *Repository
	agents *agents.Repository
	txns   TransactionLister
	events *events.Manager
	db     *sql.DB
	log    zerolog.Logger
}

// NewLifecycle creates a new session lifecycle service
func NewLifecycle(
	repo *Repository,
	agentsRepo *agents.Repository,
	txns TransactionLister,
	eventManager *events.Manager,
	db *sql.DB,
	log zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		repo:   repo,
		agents: agentsRepo,
		txns:   txns,
		events: eventManager,
		db:     db,
		log:    log.With().Str("service", "sessions").Logger(),
	}
}

// OpenTx creates a RUNNING session and marks the agent ACTIVE in the
// requested mode within tx
func (l *Lifecycle) OpenTx(tx *sql.Tx, agentID string, mode domain.AgentMode) (*domain.Session, error) {
	session := &domain.Session{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Mode:      mode,
		Status:    domain.SessionRunning,
		StartedAt: time.Now().UTC(),
	}

	if err := l.repo.CreateTx(tx, session); err != nil {
		return nil, err
	}
	if err := l.agents.ActivateTx(tx, agentID, mode); err != nil {
		return nil, err
	}

	return session, nil
}

// Complete transitions a session to COMPLETED and the agent back to INACTIVE.
// Returns false when another finalizer already closed the session; the agent
// status is then left to the winner.
func (l *Lifecycle) Complete(sessionID, agentID, output string) (bool, error) {
	return l.finalize(sessionID, agentID, domain.SessionCompleted, output, "", domain.AgentInactive)
}

// Fail transitions a session to FAILED with the captured error message and
// sets the agent to the given status (INACTIVE for engine failures, ERROR for
// data-integrity failures).
func (l *Lifecycle) Fail(sessionID, agentID, errMsg string, agentStatus domain.AgentStatus) (bool, error) {
	return l.finalize(sessionID, agentID, domain.SessionFailed, "", errMsg, agentStatus)
}

func (l *Lifecycle) finalize(sessionID, agentID string, status domain.SessionStatus, output, errMsg string, agentStatus domain.AgentStatus) (bool, error) {
	finalized := false

	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		var err error
		finalized, err = l.repo.FinalizeTx(tx, sessionID, status, output, errMsg)
		if err != nil {
			return err
		}
		if !finalized {
			// Another finalizer won; leave the agent to it
			return nil
		}
		return l.agents.UpdateStatusTx(tx, agentID, agentStatus)
	})
	if err != nil {
		return false, err
	}

	if finalized {
		l.log.Info().
			Str("session_id", sessionID).
			Str("agent_id", agentID).
			Str("status", string(status)).
			Msg("Session finalized")
	}

	return finalized, nil
}

// StopSession transitions one RUNNING session to STOPPED and the agent to
// INACTIVE. Returns false when the session already reached a terminal state.
func (l *Lifecycle) StopSession(sessionID, agentID, reason string) (bool, error) {
	return l.finalize(sessionID, agentID, domain.SessionStopped, "", reason, domain.AgentInactive)
}

// StopAgent transitions every RUNNING session of an agent to STOPPED and the
// agent to INACTIVE. Idempotent: with nothing running it returns an empty
// result and no error.
func (l *Lifecycle) StopAgent(agentID string) ([]string, error) {
	running, err := l.repo.ListRunning(agentID)
	if err != nil {
		return nil, err
	}

	stopped := make([]string, 0, len(running))
	var errs error

	for _, session := range running {
		finalized, err := l.finalize(session.ID, agentID, domain.SessionStopped, "", "stopped by operator request", domain.AgentInactive)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to stop session %s: %w", session.ID, err))
			continue
		}
		if finalized {
			stopped = append(stopped, session.ID)
			l.events.Emit(events.ExecutionStopped, "sessions", map[string]interface{}{
				"session_id": session.ID,
				"agent_id":   agentID,
			})
		}
	}

	return stopped, errs
}

// CleanupStuck force-fails RUNNING sessions older than the timeout. An empty
// agentID sweeps all agents. Agents with a reaped session are set to ERROR.
// Safe to run with zero RUNNING sessions; failures on one session do not stop
// the sweep.
func (l *Lifecycle) CleanupStuck(agentID string, timeout time.Duration) ([]CleanedSession, error) {
	cutoff := time.Now().UTC().Add(-timeout)

	stuck, err := l.repo.ListRunningOlderThan(cutoff, agentID)
	if err != nil {
		return nil, err
	}

	cleaned := make([]CleanedSession, 0, len(stuck))
	var errs error

	for _, session := range stuck {
		stuckErr := &domain.StuckSessionError{
			SessionID: session.ID,
			Age:       time.Since(session.StartedAt),
			Timeout:   timeout,
		}

		finalized, err := l.finalize(session.ID, session.AgentID, domain.SessionFailed, "", stuckErr.Error(), domain.AgentError)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to reap session %s: %w", session.ID, err))
			continue
		}
		if !finalized {
			continue
		}

		cleaned = append(cleaned, CleanedSession{SessionID: session.ID, AgentID: session.AgentID})
		l.log.Warn().
			Str("session_id", session.ID).
			Str("agent_id", session.AgentID).
			Dur("age", time.Since(session.StartedAt)).
			Msg("Stuck session reaped")
		l.events.Emit(events.SessionReaped, "sessions", map[string]interface{}{
			"session_id": session.ID,
			"agent_id":   session.AgentID,
		})
	}

	return cleaned, errs
}

// RecoverOrphans force-fails every RUNNING session at startup. A session
// that is RUNNING before the server begins accepting work was orphaned by a
// previous process.
func (l *Lifecycle) RecoverOrphans() ([]CleanedSession, error) {
	return l.CleanupStuck("", 0)
}

// Get retrieves a session with its recorded transaction ids
func (l *Lifecycle) Get(sessionID string) (*domain.Session, error) {
	session, err := l.repo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &domain.SessionNotFoundError{SessionID: sessionID}
	}

	txns, err := l.txns.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		session.TransactionIDs = append(session.TransactionIDs, txn.ID)
	}

	return session, nil
}

// List retrieves sessions, optionally filtered by agent, newest first
func (l *Lifecycle) List(agentID string, limit int) ([]domain.Session, error) {
	return l.repo.List(agentID, limit)
}

// HasRunning reports whether an agent has a RUNNING session
func (l *Lifecycle) HasRunning(agentID string) (bool, error) {
	return l.repo.HasRunning(agentID)
}
