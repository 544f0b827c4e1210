package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/willibrandon/dbprobe/internal/config"
)

// Driver opens probe sessions for one database engine.
type Driver interface {
	Name() string
	Open(ctx context.Context, t Target) (Session, error)
}

// Session is a single open connection. It is used for exactly one query and
// then closed.
type Session interface {
	// QueryScalar runs query and returns the first column of the first row,
	// or nil when the query returns no rows.
	QueryScalar(ctx context.Context, query string) (any, error)
	Close(ctx context.Context) error
}

var drivers = map[string]Driver{
	config.DriverPostgres: postgresDriver{},
	config.DriverMySQL:    mysqlDriver{},
	config.DriverSQLite:   sqliteDriver{},
}

// LookupDriver returns the driver for a name or alias.
func LookupDriver(name string) (Driver, error) {
	canonical, ok := config.NormalizeDriver(name)
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q (available: %v)", name, DriverNames())
	}
	return drivers[canonical], nil
}

// DriverNames lists the canonical driver names.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sqlSession pins a single database/sql connection out of a handle that is
// limited to one connection.
type sqlSession struct {
	db   *sql.DB
	conn *sql.Conn
}

func openSQLSession(ctx context.Context, handle *sql.DB) (*sqlSession, error) {
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)

	// db.Conn dials; sql.Open alone never touches the network
	conn, err := handle.Conn(ctx)
	if err != nil {
		handle.Close()
		return nil, err
	}
	return &sqlSession{db: handle, conn: conn}, nil
}

func (s *sqlSession) QueryScalar(ctx context.Context, query string) (any, error) {
	var value any
	err := s.conn.QueryRowContext(ctx, query).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *sqlSession) Close(ctx context.Context) error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

// openConnections reports connections still held by the underlying pool.
func (s *sqlSession) openConnections() int {
	return s.db.Stats().OpenConnections
}
