// Package store persists the bundle collection and settings to a local
// SQLite-backed key-value table, and owns the one-time migration of legacy
// storage layouts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/clipworks/evclip/internal/capture"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Storage keys. StateKey holds the current {bundles, settings} document;
// LegacyPagesKey held a flat capture list in older releases and is deleted
// once migrated.
const (
	StateKey       = "state"
	LegacyPagesKey = "saved_pages"
)

// Store wraps the key-value database. All state travels through a single
// key as one JSON document; last write wins.
type Store struct {
	db *sql.DB
}

// Open initializes the store at baseDir/evclip.db.
// The baseDir parameter allows tests to use t.TempDir().
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "evclip.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes the state and writes it under the state key. Storage
// failures are logged, never returned: in-memory state stays authoritative
// and is durable again on the next successful save.
func (s *Store) Save(state *capture.State) {
	if err := s.save(state); err != nil {
		log.Printf("store: save failed (state kept in memory): %v", err)
	}
}

func (s *Store) save(state *capture.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.put(StateKey, string(data))
}

// Load returns the persisted state. When no current-format data exists but
// the legacy flat page list does, it migrates the legacy layout; when
// neither exists it returns empty bundles and default settings.
func (s *Store) Load() (*capture.State, error) {
	raw, ok, err := s.get(StateKey)
	if err != nil {
		return nil, err
	}
	if ok {
		state := &capture.State{}
		if err := json.Unmarshal([]byte(raw), state); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		if state.Bundles == nil {
			state.Bundles = []*capture.Bundle{}
		}
		return state, nil
	}

	legacy, ok, err := s.get(LegacyPagesKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.migrateLegacyPages(legacy)
	}

	return &capture.State{
		Bundles:  []*capture.Bundle{},
		Settings: capture.DefaultSettings(),
	}, nil
}

// put upserts a key-value pair.
func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// get reads a key; ok is false when the key is absent.
func (s *Store) get(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// delete removes a key.
func (s *Store) delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// migrateSchema applies schema migrations based on user_version.
func migrateSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	// Migration 0 -> 1: key-value table
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS kv (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}
