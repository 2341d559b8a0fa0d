// Package postgres implements the experience store driver on PostgreSQL
// with the pgvector extension for cosine similarity search.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DB is the PostgreSQL driver for the experience store.
type DB struct {
	db *sql.DB
}

// NewDB opens a connection using the given DSN.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return &DB{db: db}, nil
}

// Migrate creates the experience schema. Requires the vector extension.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS experience (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			action TEXT NOT NULL,
			next_state TEXT NOT NULL,
			reward DOUBLE PRECISION NOT NULL,
			embedding vector(128),
			domain_tag TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			user_intent TEXT NOT NULL DEFAULT '',
			feedback_type TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experience_domain_tag ON experience (domain_tag)`,
		`CREATE INDEX IF NOT EXISTS idx_experience_embedding ON experience
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration statement failed: %.40s", stmt)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
