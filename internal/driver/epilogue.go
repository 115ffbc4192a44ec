package driver

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// NothingToAnalyze tells the user the capture store is empty and names the
// most useful recovery step for the mode.
func (d *Driver) NothingToAnalyze(ctx context.Context, m mode.Mode) {
	hint := "try cleaning the build first"
	if clean, ok := mode.CleanCommand(m); ok {
		hint = fmt.Sprintf("run `%s` and capture again", clean)
	}

	d.Logger.WarnContext(ctx, "nothing to analyze", "hint", hint)

	if _, ok := m.(mode.Analyze); ok {
		d.Logger.WarnContext(ctx, "the capture store is empty",
			"hint", "have you run `scanforge capture`?")
	}
}

// FailOnIssueEpilogue terminates the process when the findings report holds
// at least one finding. Only the originating invocation checks: a shim
// re-entry exiting non-zero would fail the intercepted build itself.
func (d *Driver) FailOnIssueEpilogue(ctx context.Context) {
	if !d.Cfg.FailOnIssue || !d.IsOriginator {
		return
	}

	rep, err := report.ReadFindings(d.Dir.Report())
	if err != nil {
		// The report was already written; killing the run over a read
		// error here would discard a finished analysis.
		d.Logger.ErrorContext(ctx, "cannot re-read findings report for fail-on-issue",
			"path", d.Dir.Report(), "error", err)

		return
	}

	if len(rep.Findings) == 0 {
		return
	}

	d.Logger.WarnContext(ctx, "failing the run on reported findings",
		"findings", len(rep.Findings), "exit_code", d.Cfg.FailOnIssueExitCode)

	d.exit(d.Cfg.FailOnIssueExitCode)
}

// RunEpilogue finishes the invocation. The store closes before anything
// else: the cache-mode cleanup deletes the store's side files, which must
// not vanish under an open connection.
func (d *Driver) RunEpilogue(ctx context.Context) error {
	if err := d.Store.Close(); err != nil {
		return fmt.Errorf("close capture store: %w", err)
	}

	d.FailOnIssueEpilogue(ctx)

	if !d.Cfg.CacheCapture {
		return nil
	}

	return results.Clean(d.Dir, true, func() error {
		return d.canonicalizeStore(ctx)
	})
}

// canonicalizeStore reopens the store read-write just long enough to rewrite
// it into a deterministic form for caching.
func (d *Driver) canonicalizeStore(ctx context.Context) error {
	store, err := capturedb.Open(d.Dir.Store())
	if err != nil {
		return err
	}

	if err := store.Canonicalize(ctx); err != nil {
		_ = store.Close()

		return err
	}

	return store.Close()
}
