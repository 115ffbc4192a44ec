package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
)

func writeFindingsReport(t *testing.T, findings []capturedb.Finding) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "report.json")
	rep := FindingsReport{
		Version:     reportVersion,
		GeneratedAt: time.Now().UTC(),
		Findings:    findings,
	}

	require.NoError(t, writeJSON(path, rep))

	return path
}

func sampleFindings() []capturedb.Finding {
	return []capturedb.Finding{
		{
			Checker:  "UNSAFE_CALL",
			Severity: capturedb.SeverityWarning,
			Message:  "call to gets writes without a bound, use fgets",
			File:     "src/main.c",
			Line:     9,
		},
		{
			Checker:   "RESOURCE_LEAK",
			Severity:  capturedb.SeverityWarning,
			Message:   "fopen called 2 times but fclose only 1",
			File:      "src/files.c",
			Line:      7,
			Procedure: "open_both",
		},
	}
}

func TestRenderText_WritesTableAndEchoes(t *testing.T) {
	t.Parallel()

	jsonPath := writeFindingsReport(t, sampleFindings())
	txtPath := filepath.Join(t.TempDir(), "report.txt")

	var console bytes.Buffer

	require.NoError(t, RenderText(jsonPath, txtPath, -1, false, &console))

	text, err := os.ReadFile(txtPath)
	require.NoError(t, err)

	assert.Contains(t, string(text), "SEVERITY")
	assert.Contains(t, string(text), "UNSAFE_CALL")
	assert.Contains(t, string(text), "src/files.c:7 (open_both)")
	assert.Contains(t, string(text), "2 issues")

	out := console.String()
	assert.Contains(t, out, "RESOURCE_LEAK")
	assert.Contains(t, out, "call to gets writes without a bound")
	assert.Contains(t, out, "Found 2 issues")
}

func TestRenderText_ConsoleLimit(t *testing.T) {
	t.Parallel()

	jsonPath := writeFindingsReport(t, sampleFindings())
	txtPath := filepath.Join(t.TempDir(), "report.txt")

	var console bytes.Buffer

	require.NoError(t, RenderText(jsonPath, txtPath, 1, false, &console))

	out := console.String()
	assert.Contains(t, out, "... 1 more in "+txtPath)
	assert.Contains(t, out, "Found 2 issues")
}

func TestRenderText_Quiet(t *testing.T) {
	t.Parallel()

	jsonPath := writeFindingsReport(t, sampleFindings())
	txtPath := filepath.Join(t.TempDir(), "report.txt")

	var console bytes.Buffer

	require.NoError(t, RenderText(jsonPath, txtPath, -1, true, &console))

	assert.Empty(t, console.String())
	assert.FileExists(t, txtPath)
}

func TestRenderText_NoFindings(t *testing.T) {
	t.Parallel()

	jsonPath := writeFindingsReport(t, []capturedb.Finding{})
	txtPath := filepath.Join(t.TempDir(), "report.txt")

	var console bytes.Buffer

	require.NoError(t, RenderText(jsonPath, txtPath, -1, false, &console))

	text, err := os.ReadFile(txtPath)
	require.NoError(t, err)

	assert.Equal(t, "No findings.\n", string(text))
	assert.Contains(t, console.String(), "Found 0 issues")
}
