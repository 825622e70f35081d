package sessions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

const sessionColumns = "id, agent_id, mode, status, started_at, ended_at, output, error"

// Repository handles session persistence
type Repository struct {
	agentsDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new session repository
func NewRepository(agentsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		agentsDB: agentsDB,
		log:      log.With().Str("repo", "sessions").Logger(),
	}
}

// CreateTx inserts a new RUNNING session within tx
func (r *Repository) CreateTx(tx *sql.Tx, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, agent_id, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(
		query,
		session.ID,
		session.AgentID,
		string(session.Mode),
		string(domain.SessionRunning),
		session.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by id. Returns nil if not found.
func (r *Repository) GetByID(id string) (*domain.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = ?", sessionColumns)

	session, err := scanSession(r.agentsDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// List retrieves sessions, optionally filtered by agent, newest first
func (r *Repository) List(agentID string, limit int) ([]domain.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions", sessionColumns)
	args := []interface{}{}

	if agentID != "" {
		query += " WHERE agent_id = ?"
		args = append(args, agentID)
	}

	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.agentsDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// ListRunning retrieves RUNNING sessions, optionally filtered by agent
func (r *Repository) ListRunning(agentID string) ([]domain.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE status = ?", sessionColumns)
	args := []interface{}{string(domain.SessionRunning)}

	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}

	rows, err := r.agentsDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query running sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// ListRunningOlderThan retrieves RUNNING sessions started before the cutoff,
// optionally filtered by agent
func (r *Repository) ListRunningOlderThan(cutoff time.Time, agentID string) ([]domain.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE status = ? AND started_at < ?", sessionColumns)
	args := []interface{}{string(domain.SessionRunning), cutoff.UTC().Format(time.RFC3339)}

	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}

	rows, err := r.agentsDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck sessions: %w", err)
	}
	defer rows.Close()

	return r.scanSessions(rows)
}

// HasRunning reports whether an agent has a RUNNING session
func (r *Repository) HasRunning(agentID string) (bool, error) {
	var count int
	err := r.agentsDB.QueryRow(
		"SELECT COUNT(*) FROM sessions WHERE agent_id = ? AND status = ?",
		agentID, string(domain.SessionRunning),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count running sessions: %w", err)
	}
	return count > 0, nil
}

// FinalizeTx transitions a RUNNING session to a terminal status within tx.
// The WHERE clause guards terminal-state immutability: a session that already
// reached a terminal state is never rewritten. Returns false when another
// finalizer won the race.
func (r *Repository) FinalizeTx(tx *sql.Tx, id string, status domain.SessionStatus, output, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("cannot finalize session to non-terminal status %s", status)
	}

	query := `
		UPDATE sessions
		SET status = ?, ended_at = ?, output = ?, error = ?
		WHERE id = ? AND status = ?
	`

	result, err := tx.Exec(
		query,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		output,
		errMsg,
		id,
		string(domain.SessionRunning),
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

func (r *Repository) scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan session row")
			continue
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var mode, status, startedAt string
	var endedAt, output, errMsg sql.NullString

	err := row.Scan(
		&session.ID,
		&session.AgentID,
		&mode,
		&status,
		&startedAt,
		&endedAt,
		&output,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	session.Mode = domain.AgentMode(mode)
	session.Status = domain.SessionStatus(status)
	session.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if endedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339, endedAt.String); err == nil {
			session.EndedAt = &parsed
		}
	}
	if output.Valid {
		session.Output = output.String
	}
	if errMsg.Valid {
		session.Error = errMsg.String
	}

	return &session, nil
}
