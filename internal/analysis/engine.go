// Package analysis runs checkers over the captured source files and records
// findings and cost rows in the capture store.
//
// The engine is a seam. The builtin engine keeps the pipeline self-contained
// with line-oriented checkers; configuring an analyzer command swaps in an
// external engine binary that owns its own analysis semantics and writes its
// results through the same store.
package analysis

import (
	"context"

	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// Engine analyzes the captured source files.
type Engine interface {
	// Analyze runs per-file analysis over the captured sources, scoped to
	// the changed files when a scope is set. A nil scope analyzes
	// everything.
	Analyze(ctx context.Context, changed *source.Set) error

	// WholeProgramConcurrency runs the cross-file locking pass over the
	// completed per-file results.
	WholeProgramConcurrency(ctx context.Context) error
}
