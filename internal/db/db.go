package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/logflags"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file inside the base directory.
const FileName = "memclass.db"

// Init initializes the SQLite database at baseDir/memclass.db and creates the
// projects directory next to it.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.memclass.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	projectsDir := filepath.Join(baseDir, "projects")
	if err := os.MkdirAll(projectsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}
	_ = os.Chmod(projectsDir, 0700)

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	logflags.DBLogger().WithField("path", dbPath).Debug("database ready")
	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS recent_projects (
		  path       TEXT PRIMARY KEY,
		  opened_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_recent_projects_opened
		ON recent_projects(opened_at DESC);

		CREATE TABLE IF NOT EXISTS recent_processes (
		  name         TEXT PRIMARY KEY,
		  pid          INTEGER NOT NULL,
		  attached_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_recent_processes_attached
		ON recent_processes(attached_at DESC);

		CREATE TABLE IF NOT EXISTS bookmarks (
		  id          TEXT PRIMARY KEY,
		  project     TEXT NOT NULL,
		  name_raw    TEXT NOT NULL,
		  name_norm   TEXT NOT NULL,
		  class_id    TEXT NOT NULL,
		  base        TEXT NOT NULL,
		  chain       TEXT NOT NULL,
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_bookmarks_project_name_norm
		ON bookmarks(project, name_norm);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
