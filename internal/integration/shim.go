package integration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

// Shim binary names. Builds under capture see these through CC, CXX, and
// JAVAC; main recognizes a re-entrant invocation by its process name.
const (
	ShimNameCC    = "scanforge-cc"
	ShimNameCXX   = "scanforge-cxx"
	ShimNameJavac = "scanforge-javac"
)

// Real-compiler override variables for the shims.
const (
	EnvRealCC    = "SCANFORGE_REAL_CC"
	EnvRealCXX   = "SCANFORGE_REAL_CXX"
	EnvRealJavac = "SCANFORGE_REAL_JAVAC"
)

// DetectShim reports whether the process name names a compiler shim and
// which compiler identity it stands in for.
func DetectShim(argv0 string) (mode.Shim, bool) {
	switch filepath.Base(argv0) {
	case ShimNameCC, ShimNameCXX:
		return mode.ShimClang, true
	case ShimNameJavac:
		return mode.ShimJavac, true
	default:
		return mode.ShimNone, false
	}
}

// InstallShims links the compiler shim names to the scanforge binary under
// dir. Build tools reach the links through the CC, CXX, and JAVAC entry
// points; the binary recognizes its shim identity from the link name it was
// started as. Installing over a previous run's links is fine.
func InstallShims(binPath, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shim directory: %w", err)
	}

	for _, name := range []string{ShimNameCC, ShimNameCXX, ShimNameJavac} {
		link := filepath.Join(dir, name)

		if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale shim %s: %w", name, err)
		}

		if err := os.Symlink(binPath, link); err != nil {
			return fmt.Errorf("install shim %s: %w", name, err)
		}
	}

	return nil
}

// realProgram maps a shim process name back to the compiler it stands in
// for, honoring the per-shim override variable. Non-shim programs pass
// through unchanged.
func realProgram(prog string) string {
	switch filepath.Base(prog) {
	case ShimNameCC:
		return envOr(EnvRealCC, "cc")
	case ShimNameCXX:
		return envOr(EnvRealCXX, "c++")
	case ShimNameJavac:
		return envOr(EnvRealJavac, "javac")
	default:
		return prog
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// SourceFamily discriminates how translation units are recognized in a
// compiler argument vector.
type SourceFamily int

const (
	// FamilyC matches C, C++, and Objective-C translation units.
	FamilyC SourceFamily = iota + 1
	// FamilyJava matches Java compilation units, expanding @argfiles.
	FamilyJava
)

// cSourceSuffixes are the C-family translation-unit extensions.
var cSourceSuffixes = []string{".c", ".cc", ".cpp", ".cxx", ".c++", ".m", ".mm"}

// SourceFilesFromArgs extracts the translation units named in a compiler
// argument vector. Only non-dash arguments with a source suffix qualify, so
// flags and their values never match.
func SourceFilesFromArgs(family SourceFamily, args []string) []string {
	if family == FamilyJava {
		args = expandArgfiles(args)
	}

	var sources []string

	for _, arg := range args {
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}

		if isSourceArg(family, arg) {
			sources = append(sources, arg)
		}
	}

	return sources
}

func isSourceArg(family SourceFamily, arg string) bool {
	lower := strings.ToLower(arg)

	if family == FamilyJava {
		return strings.HasSuffix(lower, ".java")
	}

	for _, suffix := range cSourceSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}

// expandArgfiles replaces @file arguments with the whitespace-separated
// contents of the named file. Unreadable argfiles pass through untouched;
// the real compiler reports them.
func expandArgfiles(args []string) []string {
	expanded := make([]string, 0, len(args))

	for _, arg := range args {
		if !strings.HasPrefix(arg, "@") {
			expanded = append(expanded, arg)

			continue
		}

		contents, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			expanded = append(expanded, arg)

			continue
		}

		expanded = append(expanded, strings.Fields(string(contents))...)
	}

	return expanded
}

func execCompiler(ctx context.Context, prog string, args []string) error {
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
