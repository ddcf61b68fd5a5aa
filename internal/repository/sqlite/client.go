// Package sqlite implements the primary store for experiments, assignments
// and exposures on a SQLite-dialect database (libsql). Uniqueness constraints
// on experiments.key and on (experiment_id, user_id) are the sole arbiters of
// write races; the repositories translate constraint rejections into
// repository.ErrDuplicateKey.
package sqlite

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// NewDB opens a libsql database connection pool
func NewDB(databaseURL, authToken string, maxOpenConns int) (*sql.DB, error) {
	connStr := databaseURL
	if authToken != "" {
		connStr += "?authToken=" + authToken
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// isUniqueViolation checks if an error is a uniqueness-constraint rejection.
// libsql surfaces SQLite errors as strings, so matching the message is the
// only discriminator available.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}
