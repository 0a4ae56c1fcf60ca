package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// snapshotVersion guards against reading envelopes written by an
// incompatible future layout.
const snapshotVersion = 1

// envelope is the on-disk snapshot layout.
type envelope struct {
	Version  int             `json:"version"`
	ActiveID string          `json:"activeId"`
	Sessions json.RawMessage `json:"sessions"`
}

// FileStore persists the snapshot as a single JSON file, rewritten
// in full on every save via an atomic temp-file rename.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a FileStore writing to path. The parent
// directory is created on demand.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".chatrelay", "snapshot.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "filestore").Logger(),
	}, nil
}

// Save writes the snapshot atomically.
func (f *FileStore) Save(sessions []byte, activeID string) error {
	env := envelope{
		Version:  snapshotVersion,
		ActiveID: activeID,
		Sessions: sessions,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to temp file, then rename over the snapshot
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot, treating a missing, unparseable, or
// wrong-version file as absent. Corrupt files are removed.
func (f *FileStore) Load() ([]byte, string, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("Corrupt snapshot discarded")
		f.purge()
		return nil, "", false, nil
	}
	if env.Version != snapshotVersion {
		f.logger.Warn().Int("version", env.Version).Msg("Unsupported snapshot version discarded")
		f.purge()
		return nil, "", false, nil
	}

	return env.Sessions, env.ActiveID, true, nil
}

// Clear removes the snapshot file.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) purge() {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.logger.Error().Err(err).Str("path", f.path).Msg("Failed to purge corrupt snapshot")
	}
}
