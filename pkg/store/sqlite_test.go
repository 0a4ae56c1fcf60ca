package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	ss, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })
	return ss
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ss := newTestSQLiteStore(t)

	sessions := []byte(`[{"id":"abc","messages":[{"text":"hi","sender":"user"}]}]`)
	require.NoError(t, ss.Save(sessions, "abc"))

	got, activeID, ok, err := ss.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", activeID)
	assert.JSONEq(t, string(sessions), string(got))
}

func TestSQLiteStoreLoadAbsent(t *testing.T) {
	ss := newTestSQLiteStore(t)

	_, _, ok, err := ss.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreOverwriteAndClear(t *testing.T) {
	ss := newTestSQLiteStore(t)

	require.NoError(t, ss.Save([]byte(`[{"id":"a"}]`), "a"))
	require.NoError(t, ss.Save([]byte(`[{"id":"b"}]`), "b"))

	got, activeID, ok, err := ss.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", activeID)
	assert.JSONEq(t, `[{"id":"b"}]`, string(got))

	require.NoError(t, ss.Clear())
	_, _, ok, err = ss.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
