package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	fs, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	return fs
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)

	sessions := []byte(`[{"id":"abc","messages":[]}]`)
	require.NoError(t, fs.Save(sessions, "abc"))

	got, activeID, ok, err := fs.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", activeID)
	assert.JSONEq(t, string(sessions), string(got))
}

func TestFileStoreLoadAbsent(t *testing.T) {
	fs := newTestFileStore(t)

	_, _, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreCorruptSnapshotPurged(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, os.WriteFile(fs.path, []byte("{not json"), 0600))

	_, _, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	// Corrupt file must be gone so the next load does not fail again
	_, statErr := os.Stat(fs.path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreUnsupportedVersionDiscarded(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, os.WriteFile(fs.path, []byte(`{"version":99,"activeId":"x","sessions":[]}`), 0600))

	_, _, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreClear(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save([]byte(`[]`), ""))
	require.NoError(t, fs.Clear())

	_, _, ok, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing an already-empty store is fine
	require.NoError(t, fs.Clear())
}

func TestFileStoreOverwrite(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.Save([]byte(`[{"id":"a"}]`), "a"))
	require.NoError(t, fs.Save([]byte(`[{"id":"b"}]`), "b"))

	got, activeID, ok, err := fs.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", activeID)
	assert.JSONEq(t, `[{"id":"b"}]`, string(got))
}
