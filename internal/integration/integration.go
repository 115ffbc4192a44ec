// Package integration implements the build-system capture backends.
//
// Every backend follows the same interception scheme: the build tool runs as
// a subprocess with the environment pointing compiler entry points back at
// the scanforge binary, so each compiler invocation re-enters scanforge as a
// shim and records its translation unit straight into the canonical capture
// store. Genrule children are the exception and write per-invocation
// sub-captures for a later merge. Compilation-database backends skip the
// interception round trip and read the database directly.
//
// Backends report per-translation-unit problems as warnings and keep going;
// only I/O-level faults (missing programs, unwritable stores) abort a
// capture, wrapped in ErrCaptureBackend.
package integration

import (
	"errors"
	"os"
)

// ErrCaptureBackend wraps I/O-level faults that reach a capture backend.
// Anything carrying it aborts the run; everything milder is a warning.
var ErrCaptureBackend = errors.New("capture backend failure")

// Interception environment. Child processes spawned by a capture see these;
// re-entrant shim invocations read them to find their results directory and
// to know they are not the originating process.
const (
	// EnvInsideCapture marks every process spawned under a capture. Its
	// presence makes an invocation non-originating.
	EnvInsideCapture = "SCANFORGE_INSIDE_CAPTURE"

	// EnvResultsDir hands the results directory down to shim re-entries.
	EnvResultsDir = "SCANFORGE_RESULTS_DIR"

	// EnvBin points intercepted build tools at the scanforge binary.
	EnvBin = "SCANFORGE_BIN"
)

// InsideCapture reports whether this process was spawned under an
// orchestrated capture. The originating invocation is the one where this is
// false.
func InsideCapture() bool {
	return os.Getenv(EnvInsideCapture) != ""
}

// ResultsDirFromEnv returns the results directory handed down by the parent
// capture, if any.
func ResultsDirFromEnv() string {
	return os.Getenv(EnvResultsDir)
}
