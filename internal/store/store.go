// Package store persists jobs, candidate reports and batch tracker records in
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested job or report does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle shared by all repositories.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		description_url TEXT NOT NULL DEFAULT '',
		must_have_skills JSONB NOT NULL,
		nice_to_have_skills JSONB NOT NULL,
		screened_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS candidate_reports (
		screening_id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		fit_score INTEGER NOT NULL,
		report JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS candidate_reports_job_idx ON candidate_reports (job_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS batch_trackers (
		job_id TEXT PRIMARY KEY,
		record JSONB NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureProvisioned creates the schema when it does not exist yet. Safe to run
// on every startup.
func (s *Store) EnsureProvisioned(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("provisioning schema: %w", err)
		}
	}

	s.logger.Debug("database schema provisioned")

	return nil
}
