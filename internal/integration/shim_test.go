package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

func TestDetectShim(t *testing.T) {
	t.Parallel()

	cases := []struct {
		argv0    string
		want     mode.Shim
		detected bool
	}{
		{argv0: "/usr/local/bin/scanforge-cc", want: mode.ShimClang, detected: true},
		{argv0: "scanforge-cxx", want: mode.ShimClang, detected: true},
		{argv0: "./scanforge-javac", want: mode.ShimJavac, detected: true},
		{argv0: "/usr/local/bin/scanforge", want: mode.ShimNone, detected: false},
		{argv0: "clang", want: mode.ShimNone, detected: false},
	}

	for _, tc := range cases {
		t.Run(tc.argv0, func(t *testing.T) {
			t.Parallel()

			shim, ok := DetectShim(tc.argv0)

			assert.Equal(t, tc.detected, ok)
			assert.Equal(t, tc.want, shim)
		})
	}
}

func TestInstallShims(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "bin")

	require.NoError(t, InstallShims("/opt/scanforge", dir))

	for _, name := range []string{ShimNameCC, ShimNameCXX, ShimNameJavac} {
		target, err := os.Readlink(filepath.Join(dir, name))

		require.NoError(t, err)
		assert.Equal(t, "/opt/scanforge", target)
	}
}

func TestInstallShims_ReplacesStaleLinks(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "bin")

	require.NoError(t, InstallShims("/old/scanforge", dir))
	require.NoError(t, InstallShims("/new/scanforge", dir))

	target, err := os.Readlink(filepath.Join(dir, ShimNameCC))

	require.NoError(t, err)
	assert.Equal(t, "/new/scanforge", target)
}

func TestSourceFilesFromArgs_CFamily(t *testing.T) {
	t.Parallel()

	args := []string{
		"-c", "main.c", "util.cpp", "view.mm",
		"-o", "main.o",
		"-I", "include.c.d",
		"-DSRC=fake.c",
		"", "notes.txt",
	}

	got := SourceFilesFromArgs(FamilyC, args)

	assert.Equal(t, []string{"main.c", "util.cpp", "view.mm"}, got)
}

func TestSourceFilesFromArgs_Java(t *testing.T) {
	t.Parallel()

	args := []string{"-d", "out", "Foo.java", "Bar.JAVA", "baz.jar"}

	got := SourceFilesFromArgs(FamilyJava, args)

	assert.Equal(t, []string{"Foo.java", "Bar.JAVA"}, got)
}

func TestSourceFilesFromArgs_ExpandsArgfiles(t *testing.T) {
	t.Parallel()

	argfile := filepath.Join(t.TempDir(), "sources.txt")

	require.NoError(t, os.WriteFile(argfile, []byte("One.java\nTwo.java  Three.java\n"), 0o644))

	got := SourceFilesFromArgs(FamilyJava, []string{"-d", "out", "@" + argfile})

	assert.Equal(t, []string{"One.java", "Two.java", "Three.java"}, got)
}

func TestSourceFilesFromArgs_MissingArgfilePassesThrough(t *testing.T) {
	t.Parallel()

	got := SourceFilesFromArgs(FamilyJava, []string{"@/does/not/exist", "Kept.java"})

	assert.Equal(t, []string{"Kept.java"}, got)
}

func TestRealProgram(t *testing.T) {
	t.Run("non-shim programs pass through", func(t *testing.T) {
		assert.Equal(t, "/usr/bin/clang", realProgram("/usr/bin/clang"))
	})

	t.Run("shim names map to default compilers", func(t *testing.T) {
		assert.Equal(t, "cc", realProgram("/opt/bin/"+ShimNameCC))
		assert.Equal(t, "c++", realProgram(ShimNameCXX))
		assert.Equal(t, "javac", realProgram(ShimNameJavac))
	})

	t.Run("override variable wins", func(t *testing.T) {
		t.Setenv(EnvRealCC, "/toolchain/bin/gcc-13")

		assert.Equal(t, "/toolchain/bin/gcc-13", realProgram(ShimNameCC))
	})
}
