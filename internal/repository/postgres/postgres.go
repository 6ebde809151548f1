// Package postgres implements repository.UserRepository on PostgreSQL.
//
// It is selected with DB_DRIVER=postgres and is the store to use when more
// than one server instance shares accounts. Usage updates lock the account
// row (SELECT ... FOR UPDATE) for the length of the merge.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sakif/excuse-me/internal/apperror"
)

// DB wraps a sql.DB pool opened with the lib/pq driver.
type DB struct {
	conn *sql.DB
}

// New connects to dsn, verifies the connection, and ensures the schema.
func New(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL must not be empty")
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// EnsureSchema creates the users table and indexes if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			email           TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			github_id       BIGINT UNIQUE,
			login           TEXT NOT NULL DEFAULT '',
			avatar_url      TEXT NOT NULL DEFAULT '',
			plan            TEXT NOT NULL DEFAULT 'FREE',
			daily_usage     INTEGER NOT NULL DEFAULT 0 CHECK (daily_usage >= 0),
			last_usage_date TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("postgres: ensuring schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func notFoundOr(err error, id, format string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("user", id)
	}
	return fmt.Errorf(format, id, err)
}
