package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same repository
// code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements repository.Store over a SQLite-dialect database
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStore creates a new store over an open database connection
func NewStore(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) reposWith(q querier) repository.Repositories {
	return repository.Repositories{
		Experiments: &experimentRepository{q: q},
		Assignments: &assignmentRepository{q: q},
		Exposures:   &exposureRepository{q: q},
	}
}

// Repos returns repositories bound to the store's connection pool
func (s *Store) Repos() repository.Repositories {
	return s.reposWith(s.db)
}

// RunInTx runs fn with repositories bound to a single transaction. An error
// from fn rolls back every write made within it.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(s.reposWith(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InitSchema creates the tables if they don't exist. The composite primary
// keys on assignments and exposures are the uniqueness constraints the
// assignment and exposure races rely on.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS experiments (
			experiment_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			key TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			description TEXT,
			hypothesis TEXT NOT NULL,
			exposure_event TEXT,
			variants TEXT NOT NULL,
			variant_allocation TEXT NOT NULL,
			bucketing_salt TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			experiment_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			variant_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (experiment_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS exposures (
			experiment_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			variant_name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (experiment_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments (status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.log.Info("Database schema initialized successfully")
	return nil
}

// Ping checks if the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
