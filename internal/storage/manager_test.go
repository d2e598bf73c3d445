// manager_test.go - Tests for the staging store
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func readAll(t *testing.T, open func() (io.ReadCloser, error)) string {
	t.Helper()
	rc, err := open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates staging directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "staging", "nested")

		_, err := NewLocalStore(dir)
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

		_, err := NewLocalStore(filepath.Join(path, "staging"))
		assert.Error(t, err)
	})
}

func TestLocalStore_Stage(t *testing.T) {
	store := createTestStore(t)

	file, err := store.Stage("april.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)

	assert.NotEmpty(t, file.ID)
	assert.Equal(t, "april.pdf", file.Name)
	assert.Equal(t, int64(len("%PDF-1.4 body")), file.Size)
	assert.FileExists(t, filepath.Join(store.stagingDir, file.ID))
	assert.Equal(t, 1, store.Len())

	// every Open yields the full content
	assert.Equal(t, "%PDF-1.4 body", readAll(t, file.Open))
	assert.Equal(t, "%PDF-1.4 body", readAll(t, file.Open))
}

func TestLocalStore_StageKeepsNamesApart(t *testing.T) {
	store := createTestStore(t)

	a, err := store.Stage("statement.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Stage("statement.pdf", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "a", readAll(t, a.Open))
	assert.Equal(t, "b", readAll(t, b.Open))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalStore_StageReadError(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Stage("bad.pdf", failingReader{})
	assert.ErrorContains(t, err, "disk on fire")

	entries, err := os.ReadDir(store.stagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, store.Len())
}

func TestLocalStore_Discard(t *testing.T) {
	store := createTestStore(t)
	file, err := store.Stage("a.pdf", strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, store.Discard(file.ID))
	assert.NoFileExists(t, filepath.Join(store.stagingDir, file.ID))

	_, err = file.Open()
	assert.Error(t, err)

	err = store.Discard(file.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_CleanupOld(t *testing.T) {
	store := createTestStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old, err := store.Stage("old.pdf", strings.NewReader("old"))
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	fresh, err := store.Stage("fresh.pdf", strings.NewReader("fresh"))
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	removed, err := store.CleanupOld(time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(store.stagingDir, old.ID))
	assert.FileExists(t, filepath.Join(store.stagingDir, fresh.ID))
	assert.Equal(t, 1, store.Len())
}

func TestLocalStore_CleanupOldToleratesMissingFiles(t *testing.T) {
	store := createTestStore(t)
	file, err := store.Stage("a.pdf", strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(store.stagingDir, file.ID)))

	removed, err := store.CleanupOld(0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Len())
}

func TestLocalStore_PinnedSurvivesCleanup(t *testing.T) {
	store := createTestStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	current, err := store.Stage("current.pdf", strings.NewReader("current"))
	require.NoError(t, err)
	stale, err := store.Stage("stale.pdf", strings.NewReader("stale"))
	require.NoError(t, err)
	require.NoError(t, store.Pin(current.ID))

	now = now.Add(24 * time.Hour)
	removed, err := store.CleanupOld(time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(store.stagingDir, stale.ID))
	assert.Equal(t, "current", readAll(t, current.Open))
	assert.True(t, store.Pinned(current.ID))

	// discarding a pinned file still removes it
	require.NoError(t, store.Discard(current.ID))
	assert.False(t, store.Pinned(current.ID))
	assert.Equal(t, 0, store.Len())
}

func TestLocalStore_PinUnknown(t *testing.T) {
	store := createTestStore(t)
	assert.ErrorIs(t, store.Pin("missing"), ErrNotFound)
}
