package sessions

import "database/sql"

// SessionsSchema defines the sessions table in agents.db
const SessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
    mode TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'RUNNING',
    started_at TEXT NOT NULL,
    ended_at TEXT,
    output TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(SessionsSchema)
	return err
}
