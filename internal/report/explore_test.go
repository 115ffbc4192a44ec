package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
)

func TestExplore_RendersStoreContents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.AddSourceFile(ctx, "/proj/main.c", "C"))
	require.NoError(t, store.AddTarget(ctx, "//app:bin", "buck"))
	seedFinding(t, store, capturedb.Finding{
		Checker:  "UNSAFE_CALL",
		Severity: capturedb.SeverityWarning,
		Message:  "call to gets writes without a bound, use fgets",
		File:     "/proj/main.c",
		Line:     3,
	})

	var console bytes.Buffer

	require.NoError(t, Explore(ctx, store, &console))

	out := console.String()
	assert.Contains(t, out, "/proj/main.c")
	assert.Contains(t, out, "//app:bin")
	assert.Contains(t, out, "Last analysis: 1 issue")
}

func TestExplore_EmptyStore(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer

	require.NoError(t, Explore(context.Background(), newStore(t), &console))

	assert.Contains(t, console.String(), "Capture store is empty.")
}

func TestExportYAML_RoundTrips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.AddSourceFile(ctx, "/proj/Main.java", "Java"))
	require.NoError(t, store.AddTarget(ctx, "//app:lib", "buck"))

	var console bytes.Buffer

	require.NoError(t, ExportYAML(ctx, store, &console))

	var inv inventory

	require.NoError(t, yaml.Unmarshal(console.Bytes(), &inv))

	require.Len(t, inv.Files, 1)
	assert.Equal(t, "/proj/Main.java", inv.Files[0].Path)
	assert.Equal(t, "Java", inv.Files[0].Language)
	require.Len(t, inv.Targets, 1)
	assert.Equal(t, "//app:lib", inv.Targets[0].Name)
	assert.Zero(t, inv.Findings)
}
