package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/nosh/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/nosh.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.nosh.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	// foreign_keys is per-connection in SQLite and drives the entry cascade.
	dbPath := filepath.Join(baseDir, "nosh.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

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
		CREATE TABLE IF NOT EXISTS users (
		  id               TEXT PRIMARY KEY,
		  phone            TEXT NOT NULL UNIQUE,
		  timezone         TEXT NOT NULL DEFAULT 'UTC',
		  target_calories  REAL CHECK (target_calories IS NULL OR target_calories >= 0),
		  target_protein   REAL CHECK (target_protein IS NULL OR target_protein >= 0),
		  target_carbs     REAL CHECK (target_carbs IS NULL OR target_carbs >= 0),
		  target_fat       REAL CHECK (target_fat IS NULL OR target_fat >= 0),
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS inbound_messages (
		  id              TEXT PRIMARY KEY,
		  user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		  body            TEXT NOT NULL,
		  classification  TEXT,
		  received_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_inbound_messages_user_received
		ON inbound_messages(user_id, received_at DESC);

		CREATE TABLE IF NOT EXISTS food_log_entries (
		  id                 TEXT PRIMARY KEY,
		  user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		  title              TEXT NOT NULL CHECK (length(title) > 0),
		  calories           REAL CHECK (calories IS NULL OR calories >= 0),
		  protein            REAL CHECK (protein IS NULL OR protein >= 0),
		  carbs              REAL CHECK (carbs IS NULL OR carbs >= 0),
		  fat                REAL CHECK (fat IS NULL OR fat >= 0),
		  confidence         REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		  meal_type          TEXT,
		  notes              TEXT,
		  logged_at          INTEGER NOT NULL,
		  source_message_id  TEXT NOT NULL,
		  created_at         INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_food_log_entries_user_logged
		ON food_log_entries(user_id, logged_at);

		CREATE INDEX IF NOT EXISTS idx_food_log_entries_source
		ON food_log_entries(source_message_id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

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
