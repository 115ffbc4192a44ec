package driver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/report"
)

// writeReportWithFindings seeds the store with n findings and writes the
// canonical reports, as a finished analysis would.
func writeReportWithFindings(t *testing.T, d *Driver, n int) {
	t.Helper()

	ctx := context.Background()

	for i := range n {
		require.NoError(t, d.Store.AddFinding(ctx, capturedb.Finding{
			Checker:  "UNSAFE_CALL",
			Severity: capturedb.SeverityWarning,
			Message:  fmt.Sprintf("finding %d", i),
			File:     "src/main.c",
			Line:     10 + i,
		}))
	}

	w := &report.Writer{Store: d.Store, Logger: d.Logger, RunID: d.RunID}
	require.NoError(t, w.WriteReports(ctx, d.Dir.Report(), d.Dir.CostsReport()))
}

// exitSpy records the exit code instead of terminating the process.
type exitSpy struct {
	code   int
	exited bool
}

func (e *exitSpy) exit(code int) {
	e.code = code
	e.exited = true
}

func TestDriver_FailOnIssueExitsWithConfiguredCode(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.FailOnIssue = true
	d.Cfg.FailOnIssueExitCode = 7
	writeReportWithFindings(t, d, 3)

	spy := &exitSpy{}
	d.Exit = spy.exit

	d.FailOnIssueEpilogue(context.Background())

	require.True(t, spy.exited)
	assert.Equal(t, 7, spy.code)
}

func TestDriver_FailOnIssueCleanReportDoesNotExit(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.FailOnIssue = true
	writeReportWithFindings(t, d, 0)

	spy := &exitSpy{}
	d.Exit = spy.exit

	d.FailOnIssueEpilogue(context.Background())

	assert.False(t, spy.exited)
}

func TestDriver_FailOnIssueSkipsShimReentry(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.FailOnIssue = true
	d.IsOriginator = false
	writeReportWithFindings(t, d, 3)

	spy := &exitSpy{}
	d.Exit = spy.exit

	d.FailOnIssueEpilogue(context.Background())

	assert.False(t, spy.exited)
}

func TestDriver_FailOnIssueDisabledDoesNotExit(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	writeReportWithFindings(t, d, 3)

	spy := &exitSpy{}
	d.Exit = spy.exit

	d.FailOnIssueEpilogue(context.Background())

	assert.False(t, spy.exited)
}

func TestDriver_FailOnIssueToleratesUnreadableReport(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.FailOnIssue = true

	var logs bytes.Buffer

	d.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	spy := &exitSpy{}
	d.Exit = spy.exit

	// No report.json was ever written.
	d.FailOnIssueEpilogue(context.Background())

	assert.False(t, spy.exited)
	assert.Contains(t, logs.String(), "cannot re-read findings report")
}

func TestDriver_NothingToAnalyzeNamesCleanCommand(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)

	var logs bytes.Buffer

	d.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	d.NothingToAnalyze(context.Background(), mode.Gradle{Prog: "gradle"})

	assert.Contains(t, logs.String(), "gradle clean")
	assert.NotContains(t, logs.String(), "scanforge capture")
}

func TestDriver_RunEpilogueOutsideCacheModeLeavesResults(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	require.NoError(t, d.Store.AddSourceFile(context.Background(), "/proj/a.c", "C"))
	writeReportWithFindings(t, d, 1)

	require.NoError(t, d.RunEpilogue(context.Background()))

	assert.FileExists(t, d.Dir.Store())
	assert.FileExists(t, d.Dir.Report())
	assert.DirExists(t, d.Dir.TmpDir())
}

func TestDriver_RunEpilogueCacheModePrunesResults(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.CacheCapture = true

	ctx := context.Background()
	require.NoError(t, d.Store.AddSourceFile(ctx, "/proj/a.c", "C"))
	writeReportWithFindings(t, d, 1)

	stray := filepath.Join(d.Dir.Path(), "notes.txt")
	require.NoError(t, os.WriteFile(stray, []byte("scratch"), 0o644))

	require.NoError(t, d.RunEpilogue(ctx))

	// The canonicalized store is the cached artifact; the reports always
	// survive; scratch files do not.
	assert.FileExists(t, d.Dir.Store())
	assert.FileExists(t, d.Dir.Report())
	assert.FileExists(t, d.Dir.CostsReport())
	assert.NoFileExists(t, stray)
	assert.NoDirExists(t, d.Dir.TmpDir())
}

func TestDriver_RunEpilogueRunsFailOnIssueAfterClose(t *testing.T) {
	t.Parallel()

	d := newTestDriver(t)
	d.Cfg.FailOnIssue = true
	d.Cfg.FailOnIssueExitCode = 3
	writeReportWithFindings(t, d, 2)

	spy := &exitSpy{}
	d.Exit = spy.exit

	require.NoError(t, d.RunEpilogue(context.Background()))

	require.True(t, spy.exited)
	assert.Equal(t, 3, spy.code)
}
