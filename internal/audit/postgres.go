package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS malop_status_audit (
		id          UUID PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		malop_id    TEXT NOT NULL,
		status      TEXT NOT NULL,
		comment     TEXT NOT NULL DEFAULT '',
		api_version TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)
`

const insertSQL = `
	INSERT INTO malop_status_audit (id, recorded_at, malop_id, status, comment, api_version, outcome, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// execer is the subset of pgxpool.Pool used by PostgresSink.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink inserts one row per status change into malop_status_audit.
type PostgresSink struct {
	db    execer
	close func()
}

// NewPostgresSink opens a pool on dsn and creates the audit table if missing.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	s := &PostgresSink{db: pool, close: pool.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create malop_status_audit: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, insertSQL,
		rec.ID,
		rec.Time,
		rec.MalopID,
		rec.Status,
		rec.Comment,
		rec.APIVersion,
		rec.Outcome,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	if s.close != nil {
		s.close()
	}
}
