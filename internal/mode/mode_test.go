package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		mode Mode
		want string
		ok   bool
	}{
		{
			name: "ant",
			mode: Ant{Prog: "ant"},
			want: "ant clean",
			ok:   true,
		},
		{
			name: "buck compilation db",
			mode: BuckCompilationDB{Prog: "buck"},
			want: "buck clean",
			ok:   true,
		},
		{
			name: "make",
			mode: Clang{Kind: ClangKindMake, Prog: "make"},
			want: "make clean",
			ok:   true,
		},
		{
			name: "direct compiler has no clean step",
			mode: Clang{Kind: ClangKindCompiler, Prog: "clang"},
		},
		{
			name: "gradle",
			mode: Gradle{Prog: "gradlew"},
			want: "gradlew clean",
			ok:   true,
		},
		{
			name: "maven",
			mode: Maven{Prog: "mvn"},
			want: "mvn clean",
			ok:   true,
		},
		{
			name: "ndk",
			mode: NdkBuild{BuildCmd: []string{"ndk-build", "-j4"}},
			want: "ndk-build clean",
			ok:   true,
		},
		{
			name: "xcpretty keeps the full command",
			mode: XcodeXcpretty{Prog: "xcodebuild", Args: []string{"-target", "App"}},
			want: "xcodebuild -target App clean",
			ok:   true,
		},
		{
			name: "analyze",
			mode: Analyze{},
		},
		{
			name: "genrule master",
			mode: BuckGenruleMaster{BuildCmd: []string{"buck", "build"}},
		},
		{
			name: "javac",
			mode: Javac{Kind: JavacKindJavac, Prog: "javac"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := CleanCommand(tc.mode)

			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestModeTags_AreDistinctPerVariant(t *testing.T) {
	t.Parallel()

	modes := []Mode{
		Analyze{},
		Ant{},
		BuckClangFlavor{},
		BuckCompilationDB{},
		BuckGenrule{},
		BuckGenruleMaster{},
		Clang{},
		ClangCompilationDB{},
		Gradle{},
		Javac{},
		Maven{},
		NdkBuild{},
		XcodeBuild{},
		XcodeXcpretty{},
	}

	seen := make(map[string]bool, len(modes))

	for _, m := range modes {
		tag := m.Tag()

		assert.NotEmpty(t, tag)
		assert.False(t, seen[tag], "duplicate tag %q", tag)

		seen[tag] = true
	}
}

func TestCompilationDatabaseDeps(t *testing.T) {
	t.Parallel()

	var zero CompilationDatabaseDeps

	assert.Equal(t, "no-deps", zero.String())
	assert.Equal(t, "no-deps", NoDeps().String())
	assert.Equal(t, "all-deps", AllDeps().String())
	assert.Equal(t, "deps-up-to-4", DepsUpToDepth(4).String())

	assert.True(t, AllDeps().All())
	assert.False(t, NoDeps().All())

	depth, ok := DepsUpToDepth(7).Depth()

	require.True(t, ok)
	assert.Equal(t, 7, depth)

	_, ok = AllDeps().Depth()

	assert.False(t, ok)
}

func TestParseBuckStrategy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want BuckStrategy
		ok   bool
	}{
		{in: "clang-flavors", want: BuckClangFlavors, ok: true},
		{in: "flavors", want: BuckClangFlavors, ok: true},
		{in: "clang-compilation-db", want: BuckClangCompilationDatabase, ok: true},
		{in: "cdb", want: BuckClangCompilationDatabase, ok: true},
		{in: "combined-genrule", want: BuckCombinedGenrule, ok: true},
		{in: "java-genrule-master", want: BuckJavaGenruleMaster, ok: true},
		{in: "bogus", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseBuckStrategy(tc.in)

			require.Equal(t, tc.ok, ok)

			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseBuildSystem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want BuildSystem
		ok   bool
	}{
		{in: "ant", want: BuildSystemAnt, ok: true},
		{in: "buck", want: BuildSystemBuck, ok: true},
		{in: "clang", want: BuildSystemClang, ok: true},
		{in: "Gradle", want: BuildSystemGradle, ok: true},
		{in: "make", want: BuildSystemMake, ok: true},
		{in: "mvn", want: BuildSystemMaven, ok: true},
		{in: "xcode", want: BuildSystemXcode, ok: true},
		{in: "bazel", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseBuildSystem(tc.in)

			require.Equal(t, tc.ok, ok)

			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestBuckMode_IsCompilationDatabase(t *testing.T) {
	t.Parallel()

	assert.True(t, BuckMode{Strategy: BuckClangCompilationDatabase}.IsCompilationDatabase())
	assert.False(t, BuckMode{Strategy: BuckClangFlavors}.IsCompilationDatabase())
	assert.False(t, BuckMode{Strategy: BuckJavaGenruleMaster}.IsCompilationDatabase())
}
