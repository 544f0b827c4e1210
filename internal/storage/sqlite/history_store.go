package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProbeRecord is one persisted probe outcome.
type ProbeRecord struct {
	ID        string
	StartedAt time.Time
	Driver    string
	Target    string // always redacted
	OK        bool
	Value     string
	ErrorKind string
	Error     string
	LatencyMS float64
}

// Latency returns LatencyMS as a duration.
func (r ProbeRecord) Latency() time.Duration {
	return time.Duration(r.LatencyMS * float64(time.Millisecond))
}

// HistoryStore provides access to recorded probes.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record inserts a probe outcome.
func (s *HistoryStore) Record(ctx context.Context, rec ProbeRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("probe record has no id")
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO probe_history (id, started_at, driver, target, ok, value, error_kind, error, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.StartedAt.UTC(), rec.Driver, rec.Target, rec.OK, rec.Value, rec.ErrorKind, rec.Error, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]ProbeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, started_at, driver, target, ok, value, error_kind, error, latency_ms
		FROM probe_history
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the total number of records.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM probe_history").Scan(&count)
	return count, err
}

// Cleanup removes records older than retention and returns how many were deleted.
// A non-positive retention keeps everything.
func (s *HistoryStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention).UTC()
	result, err := s.db.conn.ExecContext(ctx, "DELETE FROM probe_history WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]ProbeRecord, error) {
	var records []ProbeRecord
	for rows.Next() {
		var rec ProbeRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.Driver, &rec.Target, &rec.OK,
			&rec.Value, &rec.ErrorKind, &rec.Error, &rec.LatencyMS); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
