package mode

import "fmt"

// Support reports which capture backends were compiled into this binary.
// Restricted binaries are produced with the scanforge_clang_only or
// scanforge_java_only build tags.
type Support struct {
	Clang bool
	Java  bool
}

// CompiledSupport returns the support set baked into this build.
func CompiledSupport() Support {
	return compiledSupport
}

// assertSupported validates a resolved build system against compiled-in
// backend support. Buck support depends on the selected strategy, so an
// absent Buck sub-mode is rejected here as well.
func assertSupported(bs BuildSystem, buck *BuckMode, sup Support) error {
	switch bs {
	case BuildSystemAnt, BuildSystemGradle, BuildSystemJava, BuildSystemJavac, BuildSystemMaven:
		if !sup.Java {
			return unsupported(bs)
		}
	case BuildSystemClang, BuildSystemMake, BuildSystemNdk, BuildSystemXcode:
		if !sup.Clang {
			return unsupported(bs)
		}
	case BuildSystemBuck:
		if buck == nil {
			return fmt.Errorf("buck: %w", ErrAmbiguousBuckIntegration)
		}

		switch buck.Strategy {
		case BuckClangFlavors, BuckClangCompilationDatabase:
			if !sup.Clang {
				return unsupported(bs)
			}
		case BuckJavaGenruleMaster:
			if !sup.Java {
				return unsupported(bs)
			}
		case BuckCombinedGenrule:
			if !sup.Clang || !sup.Java {
				return unsupported(bs)
			}
		}
	}

	return nil
}

func unsupported(bs BuildSystem) error {
	return fmt.Errorf("%s capture not compiled into this binary: %w", bs, ErrUnsupportedBackend)
}
