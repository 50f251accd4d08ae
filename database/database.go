// Package database manages the SQLite connection and the embedded
// migration system backing the Durable Store.
package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	"github.com/akinalp/reson8/logging"
)

// DB wraps the connection pool. *sql.DB is safe for concurrent use by
// every handler goroutine.
type DB struct {
	Conn *sql.DB
}

// New opens the SQLite file at dbPath (creating its directory if needed)
// and applies any pending migrations from migrationsFS.
//
// Foreign keys are off by default in SQLite and the schema relies on them
// for the message/channel delete cascades, so they are forced on via DSN
// pragma. WAL keeps concurrent readers from blocking the writer.
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}

	if err := db.runMigrations(migrationsFS); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.L().Info("database connected, migrations applied")
	return db, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// runMigrations applies the .sql files in migrationsFS in filename order.
// The schema_migrations table records what already ran, so migrations with
// non-idempotent statements are never re-executed on restart.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	applied := make(map[string]bool)
	rows, err := db.Conn.Query(`SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migration rows: %w", err)
	}

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if _, err := db.Conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}

		if _, err := db.Conn.Exec(
			`INSERT INTO schema_migrations (filename) VALUES (?)`, file,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		logging.L().Info("migration applied", zap.String("file", file))
	}

	return nil
}
