// Package mode resolves a build invocation into the capture mode that drives
// the rest of the pipeline.
//
// A Mode is a closed tagged union: one variant per supported build-system
// integration plus a pure re-analysis variant. It is resolved once per
// process invocation, is immutable afterwards, and is passed explicitly to
// every phase. Exhaustive switches over the variants live here, in the
// capture dispatcher, and in the clean-command lookup.
package mode

import "strings"

// Mode is the resolved capture mode. Implementations are the variant structs
// in this package; the unexported marker keeps the union closed.
type Mode interface {
	// Tag returns a stable lower-case identifier for logs and telemetry.
	Tag() string

	isMode()
}

// ClangKind discriminates how a native-compiler capture was entered.
type ClangKind int

const (
	// ClangKindCompiler is a direct compiler invocation (clang, gcc, cc).
	ClangKindCompiler ClangKind = iota + 1
	// ClangKindMake is a make-driven build (make, cmake, configure).
	ClangKindMake
)

// String returns the kind name.
func (k ClangKind) String() string {
	switch k {
	case ClangKindCompiler:
		return "clang"
	case ClangKindMake:
		return "make"
	default:
		return "unknown"
	}
}

// JavacKind discriminates how a Java-compiler capture was entered.
type JavacKind int

const (
	// JavacKindJavac is a direct javac invocation.
	JavacKindJavac JavacKind = iota + 1
	// JavacKindJava is a java launcher invocation.
	JavacKindJava
)

// String returns the kind name.
func (k JavacKind) String() string {
	switch k {
	case JavacKindJavac:
		return "javac"
	case JavacKindJava:
		return "java"
	default:
		return "unknown"
	}
}

// EscapedPath references a compilation-database file. Escaped paths carry
// percent-encoded characters and need unescaping before use; raw paths are
// used as given.
type EscapedPath struct {
	Path    string
	Escaped bool
}

// Analyze is pure re-analysis of an existing capture. No capture phase runs.
type Analyze struct{}

// Ant captures through an Ant build.
type Ant struct {
	Prog string
	Args []string
}

// BuckClangFlavor captures C-family code through Buck compiler flavors. The
// whole build command is kept verbatim for re-invocation.
type BuckClangFlavor struct {
	BuildCmd []string
}

// BuckCompilationDB captures through a Buck-generated compilation database.
// Deps controls how far dependency targets are expanded.
type BuckCompilationDB struct {
	Deps CompilationDatabaseDeps
	Prog string
	Args []string
}

// BuckGenrule is the genrule-compatibility capture: the Java capture runs
// inside a Buck genrule and hands over a generated-classes path.
type BuckGenrule struct {
	Prog string
}

// BuckGenruleMaster drives a full Buck build whose genrules emit captures as
// a side effect, to be merged before analysis.
type BuckGenruleMaster struct {
	BuildCmd []string
}

// Clang captures a native compiler or make-driven build.
type Clang struct {
	Kind ClangKind
	Prog string
	Args []string
}

// ClangCompilationDB captures from explicitly supplied compilation-database
// files.
type ClangCompilationDB struct {
	DBFiles []EscapedPath
}

// Gradle captures through a Gradle build.
type Gradle struct {
	Prog string
	Args []string
}

// Javac captures a Java compiler or launcher invocation.
type Javac struct {
	Kind JavacKind
	Prog string
	Args []string
}

// Maven captures through a Maven build.
type Maven struct {
	Prog string
	Args []string
}

// NdkBuild captures through an Android NDK build.
type NdkBuild struct {
	BuildCmd []string
}

// XcodeBuild captures through xcodebuild directly.
type XcodeBuild struct {
	Prog string
	Args []string
}

// XcodeXcpretty captures through xcodebuild piped into a log prettifier,
// which also yields a compilation database.
type XcodeXcpretty struct {
	Prog string
	Args []string
}

func (Analyze) isMode()            {}
func (Ant) isMode()                {}
func (BuckClangFlavor) isMode()    {}
func (BuckCompilationDB) isMode()  {}
func (BuckGenrule) isMode()        {}
func (BuckGenruleMaster) isMode()  {}
func (Clang) isMode()              {}
func (ClangCompilationDB) isMode() {}
func (Gradle) isMode()             {}
func (Javac) isMode()              {}
func (Maven) isMode()              {}
func (NdkBuild) isMode()           {}
func (XcodeBuild) isMode()         {}
func (XcodeXcpretty) isMode()      {}

// Tag implements Mode.
func (Analyze) Tag() string { return "analyze" }

// Tag implements Mode.
func (Ant) Tag() string { return "ant" }

// Tag implements Mode.
func (BuckClangFlavor) Tag() string { return "buck-clang-flavor" }

// Tag implements Mode.
func (BuckCompilationDB) Tag() string { return "buck-compilation-db" }

// Tag implements Mode.
func (BuckGenrule) Tag() string { return "buck-genrule" }

// Tag implements Mode.
func (BuckGenruleMaster) Tag() string { return "buck-genrule-master" }

// Tag implements Mode.
func (Clang) Tag() string { return "clang" }

// Tag implements Mode.
func (ClangCompilationDB) Tag() string { return "clang-compilation-db" }

// Tag implements Mode.
func (Gradle) Tag() string { return "gradle" }

// Tag implements Mode.
func (Javac) Tag() string { return "javac" }

// Tag implements Mode.
func (Maven) Tag() string { return "maven" }

// Tag implements Mode.
func (NdkBuild) Tag() string { return "ndk-build" }

// Tag implements Mode.
func (XcodeBuild) Tag() string { return "xcode-build" }

// Tag implements Mode.
func (XcodeXcpretty) Tag() string { return "xcode-xcpretty" }

// CleanCommand returns the backend command that would clear stale build
// outputs for the mode, when one is known. Modes without a meaningful clean
// step (pure analysis, shim captures, genrule captures) return false.
func CleanCommand(m Mode) (string, bool) {
	switch v := m.(type) {
	case Ant:
		return v.Prog + " clean", true
	case BuckCompilationDB:
		return v.Prog + " clean", true
	case Clang:
		if v.Kind == ClangKindMake {
			return v.Prog + " clean", true
		}

		return "", false
	case Gradle:
		return v.Prog + " clean", true
	case Maven:
		return v.Prog + " clean", true
	case NdkBuild:
		if len(v.BuildCmd) > 0 {
			return v.BuildCmd[0] + " clean", true
		}

		return "", false
	case XcodeBuild:
		return strings.Join(append([]string{v.Prog}, v.Args...), " ") + " clean", true
	case XcodeXcpretty:
		return strings.Join(append([]string{v.Prog}, v.Args...), " ") + " clean", true
	default:
		return "", false
	}
}
