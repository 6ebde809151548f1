// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. Use ":memory:" as the path for a throwaway database
// in tests.
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/excuses.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite has a single writer. One connection serializes usage
	// transactions, and keeps ":memory:" pointing at a single database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates or updates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	// github_id is NULL for email accounts; SQLite UNIQUE allows many NULLs.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			email           TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			github_id       INTEGER UNIQUE,
			login           TEXT NOT NULL DEFAULT '',
			avatar_url      TEXT NOT NULL DEFAULT '',
			plan            TEXT NOT NULL DEFAULT 'FREE',
			daily_usage     INTEGER NOT NULL DEFAULT 0 CHECK (daily_usage >= 0),
			last_usage_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Email is unique only when present; GitHub accounts may have none.
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("creating users email index: %w", err)
	}

	return nil
}
