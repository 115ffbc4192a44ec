package commands

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// seedAnalyzedStore creates a results directory whose store already holds
// one analyzed finding, as a finished run would leave behind.
func seedAnalyzedStore(t *testing.T, resultsDir string) results.Dir {
	t.Helper()

	dir := results.Dir(resultsDir)
	require.NoError(t, dir.Create())

	store, err := capturedb.Open(dir.Store())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.AddSourceFile(ctx, "/src/main.c", "C"))
	require.NoError(t, store.AddFinding(ctx, capturedb.Finding{
		Checker:  "UNSAFE_CALL",
		Severity: capturedb.SeverityWarning,
		Message:  "call to gets writes without a bound, use fgets",
		File:     "/src/main.c",
		Line:     5,
	}))
	require.NoError(t, store.Close())

	return dir
}

func TestReportCommand_RendersExistingStore(t *testing.T) {
	t.Parallel()

	dir := seedAnalyzedStore(t, filepath.Join(t.TempDir(), "out"))

	var console bytes.Buffer

	cmd := NewReportCommand()
	cmd.SetOut(&console)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--results-dir", dir.Path(), "--log-level", "error"})

	require.NoError(t, cmd.Execute())

	assert.FileExists(t, dir.Report())
	assert.FileExists(t, dir.CostsReport())
	assert.FileExists(t, dir.ReportText())
	assert.Contains(t, console.String(), "Found 1 issue")
}

func TestReportCommand_MissingStore(t *testing.T) {
	t.Parallel()

	cmd := NewReportCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--results-dir", filepath.Join(t.TempDir(), "never-ran"),
		"--log-level", "error",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capture store under")
}
