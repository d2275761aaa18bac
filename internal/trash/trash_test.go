package trash

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Trash {
	t.Helper()
	tr, err := Open(filepath.Join(t.TempDir(), "trash"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTrashMoveAndList(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("save me"), 0o644))

	require.NoError(t, tr.Trash(victim))
	assert.NoFileExists(t, victim)

	entries, err := tr.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, victim, entries[0].OriginalPath)
	assert.Equal(t, int64(7), entries[0].Size)
	assert.WithinDuration(t, time.Now(), entries[0].TrashedAt, time.Minute)
}

func TestTrashMissingFile(t *testing.T) {
	tr := openTest(t)
	err := tr.Trash(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err, "failure must be distinguishable from success")

	entries, err := tr.List()
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed move must not leave a stray entry")
}

func TestTrashRestore(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "sub", "doc.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(victim), 0o755))
	require.NoError(t, os.WriteFile(victim, []byte("contents"), 0o644))

	require.NoError(t, tr.Trash(victim))
	entries, err := tr.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, tr.Restore(entries[0].ID))
	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))

	entries, err = tr.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrashRestoreRefusesOverwrite(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(victim, []byte("v1"), 0o644))
	require.NoError(t, tr.Trash(victim))

	// A new file appears at the original path before restore.
	require.NoError(t, os.WriteFile(victim, []byte("v2"), 0o644))

	entries, err := tr.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Error(t, tr.Restore(entries[0].ID))

	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data), "restore must not clobber the newer file")
}

func TestTrashEmpty(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("xx"), 0o644))
		require.NoError(t, tr.Trash(path))
	}

	freed, removed, err := tr.Empty(0)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, int64(6), freed)

	entries, err := tr.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrashEmptyKeepsEntryOnRemoveFailure(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	for _, name := range []string{"a", "b"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("xx"), 0o644))
		require.NoError(t, tr.Trash(path))
	}
	entries, err := tr.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	stuck := entries[0].ID

	realRemove := tr.remove
	tr.remove = func(path string) error {
		if filepath.Base(path) == stuck {
			return errors.New("device or resource busy")
		}
		return realRemove(path)
	}

	freed, removed, err := tr.Empty(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device or resource busy")
	assert.Contains(t, err.Error(), stuck)
	assert.Equal(t, 1, removed, "the healthy entry must still be removed")
	assert.Equal(t, int64(2), freed)

	entries, err = tr.List()
	require.NoError(t, err)
	require.Len(t, entries, 1, "a failed removal must keep its sidecar")
	assert.Equal(t, stuck, entries[0].ID)
}

func TestTrashEmptyOlderThanKeepsRecent(t *testing.T) {
	tr := openTest(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "recent")
	require.NoError(t, os.WriteFile(path, []byte("xx"), 0o644))
	require.NoError(t, tr.Trash(path))

	_, removed, err := tr.Empty(24 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTrashLockExcludesSecondInstance(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trash")
	tr, err := Open(dir)
	require.NoError(t, err)
	defer tr.Close()

	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrLocked)
}
