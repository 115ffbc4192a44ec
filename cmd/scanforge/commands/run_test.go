package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/analysis"
	"github.com/Sumatoshi-tech/scanforge/internal/config"
	"github.com/Sumatoshi-tech/scanforge/internal/integration"
	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// unsafeCSource trips the unsafe-call checker exactly once.
const unsafeCSource = `#include <stdio.h>

int main(void) {
    char buf[8];
    gets(buf);
    return 0;
}
`

// writeCompilationDB writes a one-entry compilation database covering src.
func writeCompilationDB(t *testing.T, dir, src string) string {
	t.Helper()

	entries := []integration.CompileCommand{
		{Directory: dir, File: src, Arguments: []string{"cc", "-c", src}},
	}

	data, err := json.Marshal(entries)
	require.NoError(t, err)

	dbPath := filepath.Join(dir, "compile_commands.json")
	require.NoError(t, os.WriteFile(dbPath, data, 0o644))

	return dbPath
}

func TestRunCommand_CompilationDatabasePipeline(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	resultsDir := filepath.Join(tmp, "out")

	src := filepath.Join(tmp, "main.c")
	require.NoError(t, os.WriteFile(src, []byte(unsafeCSource), 0o644))

	dbPath := writeCompilationDB(t, tmp, src)

	var console bytes.Buffer

	cmd := NewRunCommand()
	cmd.SetOut(&console)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--results-dir", resultsDir,
		"--log-level", "error",
		"--compilation-database", dbPath,
	})

	require.NoError(t, cmd.Execute())

	dir := results.Dir(resultsDir)

	rep, err := report.ReadFindings(dir.Report())
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)

	finding := rep.Findings[0]
	assert.Equal(t, analysis.CheckerUnsafeCall, finding.Checker)
	assert.Equal(t, src, finding.File)
	assert.Equal(t, 5, finding.Line)

	assert.Contains(t, console.String(), analysis.CheckerUnsafeCall)
	assert.Contains(t, console.String(), "Found 1 issue")

	assert.FileExists(t, dir.CostsReport())
	assert.FileExists(t, dir.ReportText())
}

func TestRunCommand_QuietSuppressesEcho(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	resultsDir := filepath.Join(tmp, "out")

	src := filepath.Join(tmp, "main.c")
	require.NoError(t, os.WriteFile(src, []byte(unsafeCSource), 0o644))

	dbPath := writeCompilationDB(t, tmp, src)

	var console bytes.Buffer

	cmd := NewRunCommand()
	cmd.SetOut(&console)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--results-dir", resultsDir,
		"--log-level", "error",
		"--quiet",
		"--compilation-database", dbPath,
	})

	require.NoError(t, cmd.Execute())

	assert.Empty(t, console.String())
	assert.FileExists(t, results.Dir(resultsDir).Report())
}

func TestRunCommand_BuilderReceivesOverlaidConfig(t *testing.T) {
	t.Parallel()

	errStop := errors.New("builder stop")

	var got *config.Config

	builder := func(cfg *config.Config, _ io.Writer) (*pipeline, error) {
		got = cfg

		return nil, errStop
	}

	cmd := newRunCommandWithDeps(builder)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{
		"--results-dir", "elsewhere",
		"--fail-on-issue",
		"--merge",
	})

	require.ErrorIs(t, cmd.Execute(), errStop)

	require.NotNil(t, got)
	assert.Equal(t, "elsewhere", got.ResultsDir)
	assert.True(t, got.FailOnIssue)
	assert.True(t, got.MergeAlways)
}
