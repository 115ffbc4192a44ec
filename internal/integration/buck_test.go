package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

func TestSplitTargets(t *testing.T) {
	t.Parallel()

	targets, flags := splitTargets([]string{
		"build", "-j", "8", "//app:lib", ":local", "cell//pkg:name", "--verbose",
	})

	assert.Equal(t, []string{"//app:lib", ":local", "cell//pkg:name"}, targets)
	assert.Equal(t, []string{"build", "-j", "8", "--verbose"}, flags)
}

func TestIsBuckTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		arg  string
		want bool
	}{
		{arg: "//app:lib", want: true},
		{arg: ":local", want: true},
		{arg: "cell//pkg:name", want: true},
		{arg: "build", want: false},
		{arg: "-j8", want: false},
		{arg: "--config=//weird", want: false},
		{arg: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.arg, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, isBuckTarget(tc.arg))
		})
	}
}

func TestAddFlavor(t *testing.T) {
	t.Parallel()

	got := addFlavor([]string{"//app:lib", "//app:bin#strip"}, compilationDBFlavor)

	assert.Equal(t, []string{
		"//app:lib#compilation-database",
		"//app:bin#strip,compilation-database",
	}, got)
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	got := splitLines("//a:a\n\n  //b:b  \n")

	assert.Equal(t, []string{"//a:a", "//b:b"}, got)
}

func newTestBuckCapture(t *testing.T) (*BuckCapture, *capturedb.Store) {
	t.Helper()

	store, err := capturedb.Open(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return &BuckCapture{
		Store:  store,
		Logger: discardLogger(),
		Runner: &BuildRunner{Logger: discardLogger(), ResultsDir: t.TempDir()},
	}, store
}

func TestBuckCapture_GenruleMasterNothingToBuild(t *testing.T) {
	t.Parallel()

	b, store := newTestBuckCapture(t)

	built, err := b.CaptureGenruleMaster(context.Background(), mode.BuckGenruleMaster{
		BuildCmd: []string{"buck", "build", "-j8"},
	})

	require.NoError(t, err)
	assert.False(t, built)

	targets, err := store.Targets(context.Background())

	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestBuckCapture_GenruleMasterBuilds(t *testing.T) {
	t.Parallel()

	b, store := newTestBuckCapture(t)

	built, err := b.CaptureGenruleMaster(context.Background(), mode.BuckGenruleMaster{
		BuildCmd: []string{"true", "build", "//app:lib"},
	})

	require.NoError(t, err)
	assert.True(t, built)

	targets, err := store.Targets(context.Background())

	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "//app:lib", targets[0].Name)
	assert.Equal(t, buckTargetKind, targets[0].Kind)
}

func TestBuckCapture_FlavorsWithoutTargets(t *testing.T) {
	t.Parallel()

	b, store := newTestBuckCapture(t)

	err := b.CaptureFlavors(context.Background(), mode.BuckClangFlavor{
		BuildCmd: []string{"buck", "build"},
	})

	require.NoError(t, err)

	targets, err := store.Targets(context.Background())

	require.NoError(t, err)
	assert.Empty(t, targets)
}
