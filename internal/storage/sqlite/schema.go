package sqlite

import "context"

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS probe_history (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		driver TEXT NOT NULL,
		target TEXT NOT NULL,
		ok INTEGER NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		latency_ms REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_probe_history_started_at ON probe_history(started_at DESC);
	`

	_, err := db.conn.ExecContext(ctx, schema)
	return err
}
