package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_FreshDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store := Open(dir, "run-1", nil)

	assert.False(t, store.MergePending())
	assert.NoFileExists(t, store.Path())
}

func TestFileStore_PathUsesJSONExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store := Open(dir, "run-1", nil)

	assert.Equal(t, filepath.Join(dir, ".scanforge-runstate.json"), store.Path())
}

func TestFileStore_StateSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first := Open(dir, "run-1", nil)
	require.NoError(t, first.SetMergePending(true))
	require.FileExists(t, first.Path())

	second := Open(dir, "run-2", nil)

	assert.True(t, second.MergePending())
}

func TestFileStore_ClearSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first := Open(dir, "run-1", nil)
	require.NoError(t, first.SetMergePending(true))
	require.NoError(t, first.SetMergePending(false))

	second := Open(dir, "run-2", nil)

	assert.False(t, second.MergePending())
}

func TestOpen_DiscardsCorruptState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".scanforge-runstate.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := Open(dir, "run-1", nil)

	assert.False(t, store.MergePending())
}

func TestOpen_DiscardsUnknownSchemaVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".scanforge-runstate.json")
	state := `{"version": 99, "run_id": "old", "merge_pending": true}`
	require.NoError(t, os.WriteFile(path, []byte(state), 0o600))

	store := Open(dir, "run-1", nil)

	assert.False(t, store.MergePending())
}

func TestOpen_SetAfterDiscardOverwritesCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".scanforge-runstate.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := Open(dir, "run-1", nil)
	require.NoError(t, store.SetMergePending(true))

	reopened := Open(dir, "run-2", nil)

	assert.True(t, reopened.MergePending())
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	assert.False(t, store.MergePending())

	require.NoError(t, store.SetMergePending(true))
	assert.True(t, store.MergePending())
	assert.Equal(t, 1, store.SetCalls)

	require.NoError(t, store.SetMergePending(false))
	assert.False(t, store.MergePending())
	assert.Equal(t, 2, store.SetCalls)
}

func TestMemoryStore_FailSet(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("disk full")

	store := NewMemoryStore()
	store.FailSet = wantErr

	err := store.SetMergePending(true)

	require.ErrorIs(t, err, wantErr)
	assert.False(t, store.MergePending())
}
