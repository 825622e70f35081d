package performance

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

const snapshotColumns = "id, agent_id, date, total_value, cash, positions_value, realized_pnl, unrealized_pnl, return_pct, created_at"

// Repository handles performance snapshot persistence in history.db
type Repository struct {
	historyDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(historyDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "snapshots").Logger(),
	}
}

// Upsert inserts or replaces the snapshot for (agent, date). Re-running the
// snapshot job on the same day refreshes the row instead of duplicating it.
func (r *Repository) Upsert(snapshot *domain.PerformanceSnapshot) error {
	query := `
		INSERT INTO performance_snapshots
		(agent_id, date, total_value, cash, positions_value, realized_pnl, unrealized_pnl, return_pct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			cash = excluded.cash,
			positions_value = excluded.positions_value,
			realized_pnl = excluded.realized_pnl,
			unrealized_pnl = excluded.unrealized_pnl,
			return_pct = excluded.return_pct,
			created_at = excluded.created_at
	`

	_, err := r.historyDB.Exec(
		query,
		snapshot.AgentID,
		snapshot.Date,
		snapshot.TotalValue,
		snapshot.Cash,
		snapshot.PositionsValue,
		snapshot.RealizedPnL,
		snapshot.UnrealizedPnL,
		snapshot.ReturnPct,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// ListByAgent retrieves snapshots for an agent, oldest first
func (r *Repository) ListByAgent(agentID string, limit int) ([]domain.PerformanceSnapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM performance_snapshots WHERE agent_id = ? ORDER BY date ASC", snapshotColumns)
	args := []interface{}{agentID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.historyDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.PerformanceSnapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan snapshot row")
			continue
		}
		snapshots = append(snapshots, *snapshot)
	}

	return snapshots, rows.Err()
}

// Latest retrieves the most recent snapshot for an agent. Returns nil if the
// agent has no history yet.
func (r *Repository) Latest(agentID string) (*domain.PerformanceSnapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM performance_snapshots WHERE agent_id = ? ORDER BY date DESC LIMIT 1", snapshotColumns)

	snapshot, err := scanSnapshot(r.historyDB.QueryRow(query, agentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return snapshot, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*domain.PerformanceSnapshot, error) {
	var snapshot domain.PerformanceSnapshot
	var createdAt string

	err := row.Scan(
		&snapshot.ID,
		&snapshot.AgentID,
		&snapshot.Date,
		&snapshot.TotalValue,
		&snapshot.Cash,
		&snapshot.PositionsValue,
		&snapshot.RealizedPnL,
		&snapshot.UnrealizedPnL,
		&snapshot.ReturnPct,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	snapshot.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &snapshot, nil
}
