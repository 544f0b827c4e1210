package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/willibrandon/dbprobe/internal/logger"
)

type postgresDriver struct{}

func (postgresDriver) Name() string { return "postgres" }

// Open establishes a single pgx connection to the target.
func (postgresDriver) Open(ctx context.Context, t Target) (Session, error) {
	logger.Debug("Opening PostgreSQL connection",
		"host", t.Host,
		"port", t.Port,
		"database", t.Database,
		"user", t.User,
		"sslmode", t.SSLMode,
	)

	connConfig, err := pgx.ParseConfig(t.postgresConnString())
	if err != nil {
		logger.Error("Failed to parse connection string", "error", err)
		return nil, &ProbeError{Kind: KindConfig, Stage: StageConfig, Err: fmt.Errorf("failed to parse connection string: %w", err)}
	}
	if t.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = t.ConnectTimeout
	}
	connConfig.RuntimeParams["application_name"] = ApplicationName

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		logger.Debug("PostgreSQL connection failed",
			"host", t.Host,
			"port", t.Port,
			"error", err,
		)
		return nil, fmt.Errorf("failed to connect to %s: %w", t.Address(), err)
	}

	return &postgresSession{conn: conn}, nil
}

type postgresSession struct {
	conn *pgx.Conn
}

func (s *postgresSession) QueryScalar(ctx context.Context, query string) (any, error) {
	var value any
	err := s.conn.QueryRow(ctx, query).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *postgresSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
