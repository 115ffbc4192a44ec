// Package driver sequences the pipeline phases of one scanforge invocation:
// capture through the resolved mode's backend, merge of distributed
// sub-captures, analysis, and reporting. Phases run strictly in order
// because each one reads what the previous one wrote to disk.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/scanforge/internal/analysis"
	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/config"
	"github.com/Sumatoshi-tech/scanforge/internal/integration"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/internal/runstate"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// ErrMergeFailed marks a failed sub-capture merge. Merge failures are fatal
// to the run: analysis over a half-merged store would silently drop
// findings.
var ErrMergeFailed = errors.New("sub-capture merge failed")

// Driver coordinates one pipeline invocation. Collaborators are injected so
// tests can substitute an in-memory run state, spy backends, and a
// recording exiter.
type Driver struct {
	Cfg      *config.Config
	Dir      results.Dir
	Store    *capturedb.Store
	RunState runstate.Store
	Engine   analysis.Engine
	Backends Backends
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Metrics  *observability.PhaseMetrics

	// RunID stamps the reports written by this invocation.
	RunID string

	// IsOriginator distinguishes the top-level invocation from a shim
	// re-entry, which captures only and never fails the build on
	// findings.
	IsOriginator bool

	// Console receives the findings echo; nil keeps reports file-only.
	Console io.Writer

	// Exit replaces os.Exit for fail-on-issue so the caller can flush
	// telemetry first.
	Exit func(code int)
}

// AnalyzeAndReport runs the merge, analyze, and report phases that the
// command and mode call for. Merge is decided independently of the other
// two: a distributed capture may leave sub-captures behind even when this
// invocation itself only reports.
func (d *Driver) AnalyzeAndReport(ctx context.Context, m mode.Mode, changed *source.Set, cmd Command) error {
	shouldAnalyze, shouldReport := d.phaseDecisions(m, cmd)

	if d.shouldMerge(m, cmd) {
		err := observability.RunPhase(ctx, d.Tracer, d.Metrics, "merge", m.Tag(), d.merge)
		if err != nil {
			return errors.Join(ErrMergeFailed, err)
		}
	}

	if shouldAnalyze {
		empty, err := d.Store.IsEmpty(ctx)
		if err != nil {
			return fmt.Errorf("inspect capture store: %w", err)
		}

		if empty && d.Cfg.Capture {
			d.NothingToAnalyze(ctx, m)

			return nil
		}

		err = observability.RunPhase(ctx, d.Tracer, d.Metrics, "analyze", m.Tag(),
			func(ctx context.Context) error {
				return d.analyze(ctx, changed)
			})
		if err != nil {
			return err
		}
	}

	if shouldReport && d.Cfg.Report {
		return observability.RunPhase(ctx, d.Tracer, d.Metrics, "report", m.Tag(), d.report)
	}

	return nil
}

// phaseDecisions resolves which of the analyze and report phases run.
// Evaluated in order, first match wins.
func (d *Driver) phaseDecisions(m mode.Mode, cmd Command) (shouldAnalyze, shouldReport bool) {
	switch {
	case cmd.captureOnly():
		return false, false
	case !d.IsOriginator:
		// Shim re-entries capture for the surrounding build and nothing
		// else.
		return false, false
	}

	if _, ok := m.(mode.BuckClangFlavor); ok {
		// Flavored Buck builds run analysis inside Buck's own rules; this
		// orchestrator only captures for them.
		return false, false
	}

	return d.Cfg.Capture, true
}

// shouldMerge reports whether sub-captures must be folded into the canonical
// store before analysis can see them.
func (d *Driver) shouldMerge(m mode.Mode, cmd Command) bool {
	if d.Cfg.MergeAlways {
		return true
	}

	switch m.(type) {
	case mode.BuckCompilationDB:
		// Capture-then-analyze in one invocation: the per-target
		// databases just captured are still unmerged.
		return cmd == CommandRun
	case mode.Analyze, mode.BuckGenruleMaster:
		return d.RunState.MergePending()
	default:
		return false
	}
}

func (d *Driver) merge(ctx context.Context) error {
	if d.Cfg.ExportChangedFunctions {
		if err := integration.MergeChangedFunctions(d.Dir); err != nil {
			return err
		}
	}

	paths, err := d.Dir.SubCaptureStores()
	if err != nil {
		return err
	}

	if err := d.Store.MergeCaptures(ctx, paths); err != nil {
		return err
	}

	d.Logger.InfoContext(ctx, "merged sub-captures", slog.Int("stores", len(paths)))

	return d.RunState.SetMergePending(false)
}

func (d *Driver) analyze(ctx context.Context, changed *source.Set) error {
	if err := d.Store.ResetAnalysis(ctx); err != nil {
		return fmt.Errorf("reset previous analysis: %w", err)
	}

	if err := d.Engine.Analyze(ctx, changed); err != nil {
		return err
	}

	if d.Cfg.Analyzer.WholeProgramConcurrency {
		return d.Engine.WholeProgramConcurrency(ctx)
	}

	return nil
}

func (d *Driver) report(ctx context.Context) error {
	writer := &report.Writer{Store: d.Store, Logger: d.Logger, RunID: d.RunID}

	if err := writer.WriteReports(ctx, d.Dir.Report(), d.Dir.CostsReport()); err != nil {
		return err
	}

	return report.RenderText(d.Dir.Report(), d.Dir.ReportText(),
		d.Cfg.Analyzer.ReportConsoleLimit, d.Cfg.Quiet, d.Console)
}

func (d *Driver) exit(code int) {
	if d.Exit != nil {
		d.Exit(code)

		return
	}

	os.Exit(code)
}
