package ledger

import "database/sql"

// PositionsSchema defines the positions table in agents.db
const PositionsSchema = `
CREATE TABLE IF NOT EXISTS positions (
    id INTEGER PRIMARY KEY,
    agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    quantity REAL NOT NULL,
    average_cost REAL NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE(agent_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_positions_agent ON positions(agent_id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(PositionsSchema)
	return err
}
