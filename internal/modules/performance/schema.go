package performance

import "database/sql"

// SnapshotsSchema defines the performance_snapshots table in history.db
const SnapshotsSchema = `
CREATE TABLE IF NOT EXISTS performance_snapshots (
    id INTEGER PRIMARY KEY,
    agent_id TEXT NOT NULL,
    date TEXT NOT NULL,
    total_value REAL NOT NULL,
    cash REAL NOT NULL,
    positions_value REAL NOT NULL,
    realized_pnl REAL NOT NULL DEFAULT 0,
    unrealized_pnl REAL NOT NULL DEFAULT 0,
    return_pct REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    UNIQUE(agent_id, date)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_agent_date ON performance_snapshots(agent_id, date);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(SnapshotsSchema)
	return err
}
