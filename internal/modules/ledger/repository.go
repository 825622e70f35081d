package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

const positionColumns = "id, agent_id, symbol, quantity, average_cost, updated_at"

// Repository handles position persistence
type Repository struct {
	agentsDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new position repository
func NewRepository(agentsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		agentsDB: agentsDB,
		log:      log.With().Str("repo", "positions").Logger(),
	}
}

// Get retrieves a position by agent and symbol. Returns nil if not held.
func (r *Repository) Get(agentID, symbol string) (*domain.Position, error) {
	query := fmt.Sprintf("SELECT %s FROM positions WHERE agent_id = ? AND symbol = ?", positionColumns)

	position, err := scanPosition(r.agentsDB.QueryRow(query, agentID, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return position, nil
}

// GetTx retrieves a position within a transaction. Returns nil if not held.
func (r *Repository) GetTx(tx *sql.Tx, agentID, symbol string) (*domain.Position, error) {
	query := fmt.Sprintf("SELECT %s FROM positions WHERE agent_id = ? AND symbol = ?", positionColumns)

	position, err := scanPosition(tx.QueryRow(query, agentID, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return position, nil
}

// ListByAgent retrieves all positions held by an agent
func (r *Repository) ListByAgent(agentID string) ([]domain.Position, error) {
	query := fmt.Sprintf("SELECT %s FROM positions WHERE agent_id = ? ORDER BY symbol ASC", positionColumns)

	rows, err := r.agentsDB.Query(query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan position row")
			continue
		}
		positions = append(positions, *position)
	}

	return positions, rows.Err()
}

// UpsertTx inserts or replaces a position within a transaction
func (r *Repository) UpsertTx(tx *sql.Tx, position *domain.Position) error {
	query := `
		INSERT INTO positions (agent_id, symbol, quantity, average_cost, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			updated_at = excluded.updated_at
	`

	_, err := tx.Exec(
		query,
		position.AgentID,
		position.Symbol,
		position.Quantity,
		position.AverageCost,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}

// DeleteTx removes a position within a transaction
func (r *Repository) DeleteTx(tx *sql.Tx, agentID, symbol string) error {
	_, err := tx.Exec("DELETE FROM positions WHERE agent_id = ? AND symbol = ?", agentID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var position domain.Position
	var updatedAt string

	err := row.Scan(
		&position.ID,
		&position.AgentID,
		&position.Symbol,
		&position.Quantity,
		&position.AverageCost,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	position.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &position, nil
}
