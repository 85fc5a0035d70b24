// Package store persists Vaani's conversational state: user profiles, the
// append-only conversation log, session boundaries, and the per-turn audit
// trail.  It is the only stateful component of the assistant; everything
// banking-related lives in the backend.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config carries the process-wide defaults the store applies when creating
// profiles and reading context windows.  Passing it at construction time
// keeps defaults out of individual call sites.
type Config struct {
	// DefaultLanguage is the language tag assigned to new profiles.
	DefaultLanguage string
	// DefaultTone is the voice-tone label assigned to new profiles.
	DefaultTone string
	// ContextWindowLimit bounds the recent-message window forwarded to the
	// backend with each turn.
	ContextWindowLimit int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage:    "en",
		DefaultTone:        "neutral",
		ContextWindowLimit: 8,
	}
}

// Store wraps the database connection
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a new Store and runs migrations.  Safe to call on every
// process start: schema creation is idempotent.
func New(dbPath string, cfg Config) (*Store, error) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultConfig().DefaultLanguage
	}
	if cfg.DefaultTone == "" {
		cfg.DefaultTone = DefaultConfig().DefaultTone
	}
	if cfg.ContextWindowLimit <= 0 {
		cfg.ContextWindowLimit = DefaultConfig().ContextWindowLimit
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is single-writer by design. Keep a single shared connection so
	// callers are serialized by database/sql instead of fighting for write
	// locks across multiple underlying connections.  Every store operation
	// is a short, bounded statement: acquire, execute, release.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and speed
		"PRAGMA busy_timeout = 5000",  // Wait up to 5s for locks
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{db: db, cfg: cfg}

	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Config returns the configuration the store was constructed with.
func (s *Store) Config() Config {
	return s.cfg
}

// runMigrations applies all pending schema migrations in version order.
// Each migration runs in its own transaction and is recorded in
// schema_migrations, so re-opening an existing database is a no-op.
func (s *Store) runMigrations() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	seenVersions := make(map[int]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Extract version from filename (e.g., "0001_init.sql" -> 1)
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}

		if prev, exists := seenVersions[version]; exists {
			return fmt.Errorf("duplicate migration version %04d: %q and %q", version, prev, entry.Name())
		}
		seenVersions[version] = entry.Name()

		if version <= currentVersion {
			continue
		}

		description := strings.TrimSuffix(parts[1], ".sql")

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			version, time.Now(), description,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}

		slog.Info("applied migration", "version", fmt.Sprintf("%04d", version), "description", description)
	}

	return nil
}

// timestamp formats t for storage.  All store timestamps are RFC3339 UTC
// strings; ordering guarantees come from the autoincrement id, not from
// these values (two rows may share a second).
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp reads a stored RFC3339 timestamp.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}
