package capturedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "capture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "captures", "abc", "capture.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestStore_IsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	empty, err := store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, store.AddSourceFile(ctx, "src/main.c", "C"))

	empty, err = store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestStore_AddSourceFile_DedupesByPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddSourceFile(ctx, "src/main.c", "C"))
	require.NoError(t, store.AddSourceFile(ctx, "src/main.c", "C"))
	require.NoError(t, store.AddSourceFile(ctx, "src/util.c", "C"))

	files, err := store.SourceFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/main.c", files[0].Path)
	assert.Equal(t, "src/util.c", files[1].Path)
}

func TestStore_Targets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTarget(ctx, "//app:bin", "buck"))
	require.NoError(t, store.AddTarget(ctx, "//app:bin", "buck"))
	require.NoError(t, store.AddTarget(ctx, ":lib", "gradle"))

	targets, err := store.Targets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, Target{Name: "//app:bin", Kind: "buck"}, targets[0])
}

func TestStore_Findings_OrderedAndDeduped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	later := Finding{
		Checker:  "dead-store",
		Severity: SeverityWarning,
		Message:  "value never read",
		File:     "src/util.c",
		Line:     40,
	}
	earlier := Finding{
		Checker:  "null-deref",
		Severity: SeverityError,
		Message:  "pointer may be nil",
		File:     "src/main.c",
		Line:     12,
	}

	require.NoError(t, store.AddFinding(ctx, later))
	require.NoError(t, store.AddFinding(ctx, earlier))
	require.NoError(t, store.AddFinding(ctx, earlier))

	findings, err := store.Findings(ctx)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, earlier, findings[0])
	assert.Equal(t, later, findings[1])
}

func TestStore_AddCost_UpsertsValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	cost := Cost{Procedure: "main", File: "src/main.c", Metric: "execution", Value: 10}
	require.NoError(t, store.AddCost(ctx, cost))

	cost.Value = 25
	require.NoError(t, store.AddCost(ctx, cost))

	costs, err := store.Costs(ctx)
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.InDelta(t, 25, costs[0].Value, 0.001)
}

func TestStore_ResetAnalysis_KeepsCapture(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddSourceFile(ctx, "src/main.c", "C"))
	require.NoError(t, store.AddFinding(ctx, Finding{
		Checker: "dead-store", Severity: SeverityWarning, Message: "m", File: "src/main.c", Line: 1,
	}))
	require.NoError(t, store.AddCost(ctx, Cost{Procedure: "main", File: "src/main.c", Metric: "execution", Value: 1}))

	require.NoError(t, store.ResetAnalysis(ctx))

	findings, err := store.Findings(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)

	costs, err := store.Costs(ctx)
	require.NoError(t, err)
	assert.Empty(t, costs)

	files, err := store.SourceFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStore_MergeCaptures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	subA, err := Open(filepath.Join(dir, "captures", "a", "capture.db"))
	require.NoError(t, err)
	require.NoError(t, subA.AddSourceFile(ctx, "src/main.c", "C"))
	require.NoError(t, subA.AddSourceFile(ctx, "src/shared.c", "C"))
	require.NoError(t, subA.Close())

	subB, err := Open(filepath.Join(dir, "captures", "b", "capture.db"))
	require.NoError(t, err)
	require.NoError(t, subB.AddSourceFile(ctx, "src/shared.c", "C"))
	require.NoError(t, subB.AddSourceFile(ctx, "src/Other.java", "Java"))
	require.NoError(t, subB.AddTarget(ctx, ":app", "gradle"))
	require.NoError(t, subB.Close())

	canonical, err := Open(filepath.Join(dir, "capture.db"))
	require.NoError(t, err)
	defer canonical.Close()

	paths := []string{
		filepath.Join(dir, "captures", "a", "capture.db"),
		filepath.Join(dir, "captures", "b", "capture.db"),
	}
	require.NoError(t, canonical.MergeCaptures(ctx, paths))

	files, err := canonical.SourceFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	targets, err := canonical.Targets(ctx)
	require.NoError(t, err)
	assert.Len(t, targets, 1)

	// Re-merging the same sub-captures is a no-op.
	require.NoError(t, canonical.MergeCaptures(ctx, paths))

	files, err = canonical.SourceFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestStore_MergeCaptures_MissingSubCapture(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	err := store.MergeCaptures(ctx, []string{
		filepath.Join(t.TempDir(), "captures", "gone", "capture.db"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge sub-capture")
}

func TestStore_Canonicalize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.AddSourceFile(ctx, "src/util.c", "C"))
	require.NoError(t, store.AddSourceFile(ctx, "src/main.c", "C"))
	require.NoError(t, store.AddFinding(ctx, Finding{
		Checker: "dead-store", Severity: SeverityWarning, Message: "m", File: "src/main.c", Line: 3,
	}))

	require.NoError(t, store.Canonicalize(ctx))

	files, err := store.SourceFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		assert.Equal(t, int64(0), f.CapturedAt.Unix())
	}

	findings, err := store.Findings(ctx)
	require.NoError(t, err)
	assert.Len(t, findings, 1)

	assert.NoFileExists(t, path+"-wal")
	assert.NoFileExists(t, path+"-shm")

	// Canonicalizing twice is safe.
	require.NoError(t, store.Canonicalize(ctx))
}
