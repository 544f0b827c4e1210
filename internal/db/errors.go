package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrorKind classifies why a probe failed.
type ErrorKind int

const (
	// KindConnect covers unreachable hosts, refused connections, timeouts and
	// connections lost mid-query.
	KindConnect ErrorKind = iota + 1
	// KindAuth is a rejected user or password.
	KindAuth
	// KindDatabase is a database that does not exist on the server.
	KindDatabase
	// KindQuery is an error the server reported for the query itself.
	KindQuery
	// KindDriver is anything the driver raised that fits no other kind.
	KindDriver
	// KindConfig is an invalid target.
	KindConfig
	// KindCredentials is a failure to obtain the password.
	KindCredentials
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindAuth:
		return "auth"
	case KindDatabase:
		return "database"
	case KindQuery:
		return "query"
	case KindDriver:
		return "driver"
	case KindConfig:
		return "config"
	case KindCredentials:
		return "credentials"
	default:
		return "unknown"
	}
}

// Operational reports whether the kind describes the database being
// unreachable or refusing us, as opposed to a problem with what we sent or
// how we were configured.
func (k ErrorKind) Operational() bool {
	switch k {
	case KindConnect, KindAuth, KindDatabase:
		return true
	default:
		return false
	}
}

// Stage names the step of a probe an error came from.
type Stage string

const (
	StageConfig      Stage = "config"
	StageCredentials Stage = "credentials"
	StageConnect     Stage = "connect"
	StageQuery       Stage = "query"
)

// ProbeError is the error recorded for a failed probe.
type ProbeError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Operational is shorthand for e.Kind.Operational().
func (e *ProbeError) Operational() bool {
	return e.Kind.Operational()
}

// IsOperational reports whether err is a ProbeError of an operational kind.
func IsOperational(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe) && pe.Operational()
}

// Classify wraps err in a ProbeError for the given stage. Errors that are
// already ProbeErrors are returned unchanged.
func Classify(stage Stage, err error) *ProbeError {
	if err == nil {
		return nil
	}
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProbeError{Kind: classifyKind(stage, err), Stage: stage, Err: err}
}

func classifyKind(stage Stage, err error) ErrorKind {
	// Server-reported errors first: a pgconn.ConnectError may wrap a PgError.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresKind(pgErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr.Number)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteKind(liteErr.Code)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return KindDatabase
	}
	if isNetworkError(err) {
		return KindConnect
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnect
	}

	if stage == StageConnect {
		return KindConnect
	}
	return KindDriver
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// postgresKind maps a SQLSTATE code onto an ErrorKind.
func postgresKind(code string) ErrorKind {
	switch {
	case code == "28000" || code == "28P01":
		return KindAuth
	case code == "3D000":
		return KindDatabase
	case strings.HasPrefix(code, "08"), // connection_exception
		strings.HasPrefix(code, "53"),  // insufficient_resources (too_many_connections)
		strings.HasPrefix(code, "57P"): // admin_shutdown, cannot_connect_now
		return KindConnect
	default:
		return KindQuery
	}
}

// mysqlKind maps a MySQL/MariaDB server error number onto an ErrorKind.
func mysqlKind(number uint16) ErrorKind {
	switch number {
	case 1044, 1045, 1251, 1698: // access denied, unsupported auth plugin
		return KindAuth
	case 1049: // unknown database
		return KindDatabase
	case 1040, 1053, 1129, 1130, 1203, 1226: // too many connections, shutdown, host blocked
		return KindConnect
	default:
		return KindQuery
	}
}

// sqliteKind maps a SQLite primary result code onto an ErrorKind.
func sqliteKind(code sqlite3.ErrNo) ErrorKind {
	switch code {
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrAuth,
		sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCorrupt:
		return KindConnect
	default:
		return KindQuery
	}
}
