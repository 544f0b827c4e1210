package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// QueryProbeBackends counts the server backends opened by dbprobe, as seen in
// pg_stat_activity. conn should be a separate monitoring connection.
func QueryProbeBackends(ctx context.Context, conn *pgx.Conn) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM pg_stat_activity WHERE application_name = $1"

	err := conn.QueryRow(ctx, query, ApplicationName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query probe backends: %w", err)
	}

	return count, nil
}

// QueryMySQLSessions counts the sessions a MySQL/MariaDB user currently holds,
// from the server's process list.
func QueryMySQLSessions(ctx context.Context, db *sql.DB, user string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM information_schema.PROCESSLIST WHERE USER = ?"

	err := db.QueryRowContext(ctx, query, user).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query mysql sessions: %w", err)
	}

	return count, nil
}
