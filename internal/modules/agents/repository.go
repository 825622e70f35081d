package agents

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

const agentColumns = "id, name, status, mode, cash, created_at, updated_at"

// Repository handles agent persistence
type Repository struct {
	agentsDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new agent repository
func NewRepository(agentsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		agentsDB: agentsDB,
		log:      log.With().Str("repo", "agents").Logger(),
	}
}

// Create inserts a new agent
func (r *Repository) Create(agent *domain.Agent) (*domain.Agent, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO agents (id, name, status, mode, cash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.agentsDB.Exec(
		query,
		agent.ID,
		agent.Name,
		string(agent.Status),
		string(agent.Mode),
		agent.Cash,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert agent: %w", err)
	}

	agent.CreatedAt, _ = time.Parse(time.RFC3339, now)
	agent.UpdatedAt = agent.CreatedAt

	return agent, nil
}

// GetByID retrieves an agent by ID. Returns nil if not found.
func (r *Repository) GetByID(id string) (*domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents WHERE id = ?", agentColumns)

	agent, err := scanAgent(r.agentsDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// GetByIDTx retrieves an agent within a transaction. Returns nil if not found.
func (r *Repository) GetByIDTx(tx *sql.Tx, id string) (*domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents WHERE id = ?", agentColumns)

	agent, err := scanAgent(tx.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// List retrieves all agents ordered by creation time
func (r *Repository) List() ([]domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents ORDER BY created_at ASC", agentColumns)

	rows, err := r.agentsDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan agent row")
			continue
		}
		agents = append(agents, *agent)
	}

	return agents, rows.Err()
}

// Update persists name and mode changes
func (r *Repository) Update(agent *domain.Agent) error {
	query := `UPDATE agents SET name = ?, mode = ?, updated_at = ? WHERE id = ?`

	result, err := r.agentsDB.Exec(query, agent.Name, string(agent.Mode), time.Now().UTC().Format(time.RFC3339), agent.ID)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: agent.ID}
	}

	return nil
}

// UpdateStatus sets the agent's status
func (r *Repository) UpdateStatus(id string, status domain.AgentStatus) error {
	query := `UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.agentsDB.Exec(query, string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: id}
	}

	return nil
}

// UpdateStatusTx sets the agent's status within a transaction
func (r *Repository) UpdateStatusTx(tx *sql.Tx, id string, status domain.AgentStatus) error {
	query := `UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`

	result, err := tx.Exec(query, string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: id}
	}

	return nil
}

// ActivateTx marks the agent ACTIVE in the given mode within a transaction.
// The mode is part of the agent's durable state and follows each execution.
func (r *Repository) ActivateTx(tx *sql.Tx, id string, mode domain.AgentMode) error {
	query := `UPDATE agents SET status = ?, mode = ?, updated_at = ? WHERE id = ?`

	result, err := tx.Exec(query, string(domain.AgentActive), string(mode), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to activate agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: id}
	}

	return nil
}

// GetCashTx reads the agent's cash balance within a transaction
func (r *Repository) GetCashTx(tx *sql.Tx, id string) (float64, error) {
	var cash float64
	err := tx.QueryRow("SELECT cash FROM agents WHERE id = ?", id).Scan(&cash)
	if err == sql.ErrNoRows {
		return 0, &domain.AgentNotFoundError{AgentID: id}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get agent cash: %w", err)
	}
	return cash, nil
}

// UpdateCashTx sets the agent's cash balance within a transaction
func (r *Repository) UpdateCashTx(tx *sql.Tx, id string, cash float64) error {
	result, err := tx.Exec(
		`UPDATE agents SET cash = ?, updated_at = ? WHERE id = ?`,
		cash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent cash: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: id}
	}

	return nil
}

// Delete removes an agent
func (r *Repository) Delete(id string) error {
	result, err := r.agentsDB.Exec("DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.AgentNotFoundError{AgentID: id}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var agent domain.Agent
	var status, mode, createdAt, updatedAt string

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&status,
		&mode,
		&agent.Cash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	agent.Status = domain.AgentStatus(status)
	agent.Mode = domain.AgentMode(mode)
	agent.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	agent.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &agent, nil
}
