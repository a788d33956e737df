// Package hoststore is the local stand-in for the host application's
// persistence: the session key/value store, the per-project attribute
// value store, and a small project/snapshot catalog. The deposition core
// only ever sees the narrow interfaces these types implement.
package hoststore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB owns the SQLite connection shared by the store views. One connection
// only: the stores are all writers and SQLite handles a single writer
// best.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path and applies
// pending schema migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("hoststore: creating data directory: %w", err)
	}

	// DSN parameters ensure pragmas apply to every connection.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("hoststore: opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Sessions returns the session key/value view scoped to one session ID.
func (d *DB) Sessions(sessionID string) *SessionStore {
	return &SessionStore{db: d.db, sessionID: sessionID, nowFunc: time.Now}
}

// Values returns the per-project attribute value view.
func (d *DB) Values() *ValueStore {
	return &ValueStore{db: d.db}
}

// Projects returns the project/snapshot catalog.
func (d *DB) Projects() *ProjectStore {
	return &ProjectStore{db: d.db, nowFunc: time.Now}
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("hoststore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("hoststore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("hoststore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}
