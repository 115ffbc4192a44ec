package mode

import "strings"

// BuildSystem is the intermediate kind a build command resolves to before
// the (kind, buck strategy) table picks the concrete Mode variant.
type BuildSystem int

const (
	// BuildSystemAnt is the Ant build tool.
	BuildSystemAnt BuildSystem = iota + 1
	// BuildSystemBuck is any Buck launcher.
	BuildSystemBuck
	// BuildSystemClang is a direct C-family compiler invocation.
	BuildSystemClang
	// BuildSystemGradle is the Gradle build tool.
	BuildSystemGradle
	// BuildSystemJava is the java launcher.
	BuildSystemJava
	// BuildSystemJavac is the Java compiler.
	BuildSystemJavac
	// BuildSystemMake is a make-driven native build.
	BuildSystemMake
	// BuildSystemMaven is the Maven build tool.
	BuildSystemMaven
	// BuildSystemNdk is the Android NDK build wrapper.
	BuildSystemNdk
	// BuildSystemXcode is xcodebuild.
	BuildSystemXcode
)

// String returns the canonical backend name.
func (b BuildSystem) String() string {
	switch b {
	case BuildSystemAnt:
		return "ant"
	case BuildSystemBuck:
		return "buck"
	case BuildSystemClang:
		return "clang"
	case BuildSystemGradle:
		return "gradle"
	case BuildSystemJava:
		return "java"
	case BuildSystemJavac:
		return "javac"
	case BuildSystemMake:
		return "make"
	case BuildSystemMaven:
		return "maven"
	case BuildSystemNdk:
		return "ndk-build"
	case BuildSystemXcode:
		return "xcodebuild"
	default:
		return "unknown"
	}
}

// ParseBuildSystem maps a user-supplied backend name (the forced-integration
// flag value) to a BuildSystem. The match is exact on canonical names.
func ParseBuildSystem(name string) (BuildSystem, bool) {
	switch strings.ToLower(name) {
	case "ant":
		return BuildSystemAnt, true
	case "buck":
		return BuildSystemBuck, true
	case "clang", "cc":
		return BuildSystemClang, true
	case "gradle":
		return BuildSystemGradle, true
	case "java":
		return BuildSystemJava, true
	case "javac":
		return BuildSystemJavac, true
	case "make":
		return BuildSystemMake, true
	case "maven", "mvn":
		return BuildSystemMaven, true
	case "ndk-build", "ndk":
		return BuildSystemNdk, true
	case "xcodebuild", "xcode":
		return BuildSystemXcode, true
	default:
		return 0, false
	}
}

// buildSystemByProgram is the fixed program-name table consulted when no
// explicit override applies. Lookup is on the base name of the first token
// of the build command.
var buildSystemByProgram = map[string]BuildSystem{
	"ant":        BuildSystemAnt,
	"clang":      BuildSystemClang,
	"clang++":    BuildSystemClang,
	"cc":         BuildSystemClang,
	"c++":        BuildSystemClang,
	"gcc":        BuildSystemClang,
	"g++":        BuildSystemClang,
	"gradle":     BuildSystemGradle,
	"gradlew":    BuildSystemGradle,
	"java":       BuildSystemJava,
	"javac":      BuildSystemJavac,
	"make":       BuildSystemMake,
	"gmake":      BuildSystemMake,
	"cmake":      BuildSystemMake,
	"configure":  BuildSystemMake,
	"waf":        BuildSystemMake,
	"mvn":        BuildSystemMaven,
	"mvnw":       BuildSystemMaven,
	"ndk-build":  BuildSystemNdk,
	"xcodebuild": BuildSystemXcode,
}

// inferBuildSystem resolves a program base name to a BuildSystem. Exact
// table entries win; otherwise any name containing "buck" selects Buck so
// wrappers like "buck2" or site-local launchers are recognized.
func inferBuildSystem(baseName string) (BuildSystem, bool) {
	if bs, ok := buildSystemByProgram[baseName]; ok {
		return bs, true
	}

	if strings.Contains(baseName, "buck") {
		return BuildSystemBuck, true
	}

	return 0, false
}
