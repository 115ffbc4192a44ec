package mode

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnsupportedBackend is returned when the build command resolves to a
// backend that was compiled out of this binary, or to no known backend at
// all.
var ErrUnsupportedBackend = errors.New("unsupported build system backend")

// ErrAmbiguousBuckIntegration is returned when the build command names a
// Buck launcher but no Buck capture strategy was selected.
var ErrAmbiguousBuckIntegration = errors.New("buck integration requires an explicit capture strategy")

// Shim identifies how the binary was invoked when masquerading as a
// compiler front-end for build interception.
type Shim int

const (
	// ShimNone means the binary runs under its own name.
	ShimNone Shim = iota
	// ShimClang means the binary was invoked as a C-family compiler.
	ShimClang
	// ShimJavac means the binary was invoked as the Java compiler.
	ShimJavac
)

// Invocation carries everything Resolve needs about the current process
// invocation and its configuration.
type Invocation struct {
	// BuildCmd is the build command to capture, program first.
	BuildCmd []string

	// Shim is the compiler identity the process was invoked under, if any.
	Shim Shim

	// ShimProg is the program name the shim was invoked as (argv[0]).
	ShimProg string

	// ShimArgs is the compiler argument vector of a shim invocation.
	ShimArgs []string

	// ForcedIntegration overrides program-name inference. Honored only for
	// the originating process.
	ForcedIntegration *BuildSystem

	// BuckMode is the configured Buck capture sub-mode, if any.
	BuckMode *BuckMode

	// GeneratedClasses is the genrule-compatibility classes path, if set.
	GeneratedClasses string

	// CompilationDBFiles are explicitly supplied compilation-database
	// references.
	CompilationDBFiles []EscapedPath

	// XcprettyEnabled selects the prettified Xcode capture variant.
	XcprettyEnabled bool

	// IsOriginator is true for the top-level invocation and false for
	// re-entrant children spawned under build interception.
	IsOriginator bool
}

// Resolve maps an invocation to its capture mode.
//
// Resolution order: compiler-shim short-circuit, then the
// genrule-compatibility path, then the empty-build-command cases, then
// program-name (or forced) build-system inference, support validation, and
// finally the (build system, buck strategy) variant table. A forced
// integration is honored only for the originating process; children
// re-derive the kind from the program name so an override meant for the
// top-level build does not leak into sub-builds.
func Resolve(inv Invocation, sup Support) (Mode, error) {
	switch inv.Shim {
	case ShimClang:
		return Clang{Kind: ClangKindCompiler, Prog: inv.ShimProg, Args: inv.ShimArgs}, nil
	case ShimJavac:
		return Javac{Kind: JavacKindJavac, Prog: inv.ShimProg, Args: inv.ShimArgs}, nil
	case ShimNone:
	}

	if inv.GeneratedClasses != "" {
		return BuckGenrule{Prog: inv.GeneratedClasses}, nil
	}

	if len(inv.BuildCmd) == 0 {
		if len(inv.CompilationDBFiles) > 0 {
			return ClangCompilationDB{DBFiles: inv.CompilationDBFiles}, nil
		}

		return Analyze{}, nil
	}

	prog := inv.BuildCmd[0]
	args := inv.BuildCmd[1:]

	bs, err := resolveBuildSystem(inv, prog)
	if err != nil {
		return nil, err
	}

	err = assertSupported(bs, inv.BuckMode, sup)
	if err != nil {
		return nil, err
	}

	return variantFor(bs, inv, prog, args)
}

func resolveBuildSystem(inv Invocation, prog string) (BuildSystem, error) {
	if inv.ForcedIntegration != nil && inv.IsOriginator {
		return *inv.ForcedIntegration, nil
	}

	base := filepath.Base(prog)

	bs, ok := inferBuildSystem(base)
	if !ok {
		return 0, fmt.Errorf("unrecognized build program %q: %w", base, ErrUnsupportedBackend)
	}

	return bs, nil
}

func variantFor(bs BuildSystem, inv Invocation, prog string, args []string) (Mode, error) {
	switch bs {
	case BuildSystemAnt:
		return Ant{Prog: prog, Args: args}, nil
	case BuildSystemBuck:
		return buckVariant(inv, prog, args)
	case BuildSystemClang:
		return Clang{Kind: ClangKindCompiler, Prog: prog, Args: args}, nil
	case BuildSystemMake:
		return Clang{Kind: ClangKindMake, Prog: prog, Args: args}, nil
	case BuildSystemGradle:
		return Gradle{Prog: prog, Args: args}, nil
	case BuildSystemJava:
		return Javac{Kind: JavacKindJava, Prog: prog, Args: args}, nil
	case BuildSystemJavac:
		return Javac{Kind: JavacKindJavac, Prog: prog, Args: args}, nil
	case BuildSystemMaven:
		return Maven{Prog: prog, Args: args}, nil
	case BuildSystemNdk:
		return NdkBuild{BuildCmd: inv.BuildCmd}, nil
	case BuildSystemXcode:
		if inv.XcprettyEnabled {
			return XcodeXcpretty{Prog: prog, Args: args}, nil
		}

		return XcodeBuild{Prog: prog, Args: args}, nil
	default:
		return nil, fmt.Errorf("build system %q: %w", bs, ErrUnsupportedBackend)
	}
}

func buckVariant(inv Invocation, prog string, args []string) (Mode, error) {
	if inv.BuckMode == nil {
		return nil, fmt.Errorf("build command %q: %w", prog, ErrAmbiguousBuckIntegration)
	}

	switch inv.BuckMode.Strategy {
	case BuckClangFlavors:
		return BuckClangFlavor{BuildCmd: inv.BuildCmd}, nil
	case BuckClangCompilationDatabase:
		return BuckCompilationDB{Deps: inv.BuckMode.Deps, Prog: prog, Args: args}, nil
	case BuckCombinedGenrule, BuckJavaGenruleMaster:
		return BuckGenruleMaster{BuildCmd: inv.BuildCmd}, nil
	default:
		return nil, fmt.Errorf("build command %q: %w", prog, ErrAmbiguousBuckIntegration)
	}
}
