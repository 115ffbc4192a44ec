package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

func TestDiff_Classification(t *testing.T) {
	t.Parallel()

	previous := []capturedb.Finding{
		{
			Checker:   "RESOURCE_LEAK",
			Severity:  capturedb.SeverityWarning,
			Message:   "fopen called 2 times but fclose only 1",
			File:      "src/files.c",
			Line:      7,
			Procedure: "open_both",
		},
		{
			Checker:  "UNSAFE_CALL",
			Severity: capturedb.SeverityWarning,
			Message:  "call to gets writes without a bound, use fgets",
			File:     "src/old.c",
			Line:     3,
		},
	}

	current := []capturedb.Finding{
		// Same leak, the count qualifier drifted.
		{
			Checker:   "RESOURCE_LEAK",
			Severity:  capturedb.SeverityWarning,
			Message:   "fopen called 3 times but fclose only 1",
			File:      "src/files.c",
			Line:      12,
			Procedure: "open_both",
		},
		{
			Checker:  "HARD_EXIT",
			Severity: capturedb.SeverityWarning,
			Message:  "process exit from library code",
			File:     "src/Main.java",
			Line:     9,
		},
	}

	diff := Diff(previous, current)

	require.Len(t, diff.Preexisting, 1)
	assert.Equal(t, 12, diff.Preexisting[0].Line)

	require.Len(t, diff.Introduced, 1)
	assert.Equal(t, "HARD_EXIT", diff.Introduced[0].Checker)

	require.Len(t, diff.Fixed, 1)
	assert.Equal(t, "src/old.c", diff.Fixed[0].File)
}

func TestDiff_DivergedMessageIsNewIssue(t *testing.T) {
	t.Parallel()

	previous := []capturedb.Finding{{
		Checker: "CHECK", Severity: capturedb.SeverityWarning,
		Message: "gets overflows", File: "a.c", Line: 1,
	}}
	current := []capturedb.Finding{{
		Checker: "CHECK", Severity: capturedb.SeverityWarning,
		Message: "null pointer dereferenced", File: "a.c", Line: 1,
	}}

	diff := Diff(previous, current)

	assert.Len(t, diff.Introduced, 1)
	assert.Len(t, diff.Fixed, 1)
	assert.Empty(t, diff.Preexisting)
}

func TestDiff_LineShiftStaysPreexisting(t *testing.T) {
	t.Parallel()

	finding := capturedb.Finding{
		Checker: "UNSAFE_CALL", Severity: capturedb.SeverityWarning,
		Message: "call to strcpy writes without a bound, use strncpy",
		File:    "a.c", Line: 10,
	}

	moved := finding
	moved.Line = 42

	diff := Diff([]capturedb.Finding{finding}, []capturedb.Finding{moved})

	require.Len(t, diff.Preexisting, 1)
	assert.Equal(t, 42, diff.Preexisting[0].Line)
	assert.Empty(t, diff.Introduced)
	assert.Empty(t, diff.Fixed)
}

func TestDiffReports_FromFiles(t *testing.T) {
	t.Parallel()

	previousPath := writeFindingsReport(t, sampleFindings())
	currentPath := writeFindingsReport(t, sampleFindings()[:1])

	diff, err := DiffReports(previousPath, currentPath)

	require.NoError(t, err)
	assert.Len(t, diff.Preexisting, 1)
	assert.Len(t, diff.Fixed, 1)
	assert.Empty(t, diff.Introduced)
}

func TestWriteDifferential(t *testing.T) {
	t.Parallel()

	dir := results.Dir(t.TempDir())
	diff := Diff(nil, sampleFindings())

	require.NoError(t, WriteDifferential(dir, diff))

	data, err := os.ReadFile(filepath.Join(dir.DifferentialDir(), IntroducedFile))
	require.NoError(t, err)

	var introduced []capturedb.Finding

	require.NoError(t, json.Unmarshal(data, &introduced))
	assert.Len(t, introduced, 2)

	// Empty buckets serialize as [], not null.
	data, err = os.ReadFile(filepath.Join(dir.DifferentialDir(), FixedFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestMessageSimilarity(t *testing.T) {
	t.Parallel()

	dmp := diffmatchpatch.New()

	tests := []struct {
		name string
		a    string
		b    string
		high bool
	}{
		{name: "identical", a: "same text", b: "same text", high: true},
		{name: "qualifier drift", a: "fopen called 2 times but fclose only 1", b: "fopen called 3 times but fclose only 1", high: true},
		{name: "disjoint", a: "gets overflows", b: "null pointer dereferenced", high: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := messageSimilarity(dmp, tc.a, tc.b)

			if tc.high {
				assert.GreaterOrEqual(t, got, similarityThreshold)
			} else {
				assert.Less(t, got, similarityThreshold)
			}
		})
	}
}
