package agents

import "database/sql"

// AgentsSchema defines the agents table in agents.db
const AgentsSchema = `
CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'INACTIVE',
    mode TEXT NOT NULL DEFAULT 'OBSERVATION',
    cash REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(AgentsSchema)
	return err
}
