package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	keySessions = "sessions"
	keyActiveID = "activeId"
)

// SQLiteStore persists the snapshot in a two-row key-value table,
// mirroring the file backend's sessions/active-pointer split.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (and initializes) the snapshot database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".chatrelay", "snapshot.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS snapshot (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "sqlitestore").Logger(),
	}, nil
}

// Save writes both snapshot rows in one transaction.
func (s *SQLiteStore) Save(sessions []byte, activeID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot write: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO snapshot (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, keySessions, sessions); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	if _, err := tx.Exec(upsert, keyActiveID, []byte(activeID)); err != nil {
		return fmt.Errorf("failed to write active id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot write: %w", err)
	}
	return nil
}

// Load reads the snapshot rows. A missing sessions row means no
// snapshot exists.
func (s *SQLiteStore) Load() ([]byte, string, bool, error) {
	var sessions []byte
	err := s.db.QueryRow(`SELECT value FROM snapshot WHERE key = ?`, keySessions).Scan(&sessions)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read sessions: %w", err)
	}

	var active []byte
	err = s.db.QueryRow(`SELECT value FROM snapshot WHERE key = ?`, keyActiveID).Scan(&active)
	if err != nil && err != sql.ErrNoRows {
		return nil, "", false, fmt.Errorf("failed to read active id: %w", err)
	}

	return sessions, string(active), true, nil
}

// Clear removes all snapshot rows.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
