package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/willibrandon/dbprobe/internal/logger"
)

type sqliteDriver struct{}

func (sqliteDriver) Name() string { return "sqlite" }

// Open opens an existing SQLite database file. A missing file is reported as
// a missing database rather than silently created.
func (sqliteDriver) Open(ctx context.Context, t Target) (Session, error) {
	logger.Debug("Opening SQLite database", "path", t.Database)

	if _, err := os.Stat(t.Database); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", t.Database, err)
	}

	handle, err := sql.Open("sqlite3", t.sqliteDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", t.Database, err)
	}

	sess, err := openSQLSession(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", t.Database, err)
	}
	return sess, nil
}

func (t Target) sqliteDSN() string {
	busy := int64(5000)
	if t.ConnectTimeout > 0 {
		busy = t.ConnectTimeout.Milliseconds()
	}
	q := url.Values{}
	q.Set("mode", "rw")
	q.Set("_busy_timeout", fmt.Sprint(busy))
	// SQLite decodes %HH escapes in URI paths
	path := (&url.URL{Path: t.Database}).EscapedPath()
	return "file:" + path + "?" + q.Encode()
}
