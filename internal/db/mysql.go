package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/willibrandon/dbprobe/internal/logger"
)

type mysqlDriver struct{}

func (mysqlDriver) Name() string { return "mysql" }

// Open establishes a single MySQL/MariaDB connection to the target.
func (mysqlDriver) Open(ctx context.Context, t Target) (Session, error) {
	logger.Debug("Opening MySQL connection",
		"host", t.Host,
		"port", t.Port,
		"database", t.Database,
		"user", t.User,
		"tls", mysqlTLS(t.SSLMode),
	)

	connector, err := mysql.NewConnector(t.mysqlConfig())
	if err != nil {
		return nil, &ProbeError{Kind: KindConfig, Stage: StageConfig, Err: fmt.Errorf("invalid mysql configuration: %w", err)}
	}

	sess, err := openSQLSession(ctx, sql.OpenDB(connector))
	if err != nil {
		logger.Debug("MySQL connection failed",
			"host", t.Host,
			"port", t.Port,
			"error", err,
		)
		return nil, fmt.Errorf("failed to connect to %s: %w", t.Address(), err)
	}
	return sess, nil
}

func (t Target) mysqlConfig() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = t.Address()
	cfg.DBName = t.Database
	cfg.TLSConfig = mysqlTLS(t.SSLMode)
	cfg.ConnectionAttributes = "program_name:" + ApplicationName
	if t.ConnectTimeout > 0 {
		cfg.Timeout = t.ConnectTimeout
	}
	return cfg
}

// mysqlTLS maps libpq-style sslmode values onto the driver's tls parameter.
func mysqlTLS(sslmode string) string {
	switch sslmode {
	case "disable":
		return "false"
	case "require":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return "true"
	default:
		return "preferred"
	}
}
