package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

// Buck flavor suffixes appended to build targets.
const (
	// captureFlavor makes Buck rules route compile steps through the
	// interception shims.
	captureFlavor = "capture"
	// compilationDBFlavor makes Buck emit a compilation database per
	// target instead of building it.
	compilationDBFlavor = "compilation-database"
)

// buckTargetKind labels targets recorded by Buck captures.
const buckTargetKind = "buck"

// BuckCapture implements the three Buck capture strategies: compiler
// flavors, per-target compilation databases, and the genrule master build.
type BuckCapture struct {
	Store  *capturedb.Store
	Logger *slog.Logger
	Runner *BuildRunner
	CDB    *CDBCapture
}

// CaptureFlavors re-invokes the Buck build with the capture flavor appended
// to every target. Compile steps inside the flavored build re-enter through
// the compiler shims.
func (b *BuckCapture) CaptureFlavors(ctx context.Context, m mode.BuckClangFlavor) error {
	if len(m.BuildCmd) == 0 {
		return nil
	}

	prog := m.BuildCmd[0]
	targets, flags := splitTargets(m.BuildCmd[1:])

	if len(targets) == 0 {
		b.Logger.Info("no buck targets in build command, nothing to capture")

		return nil
	}

	if err := b.recordTargets(ctx, targets); err != nil {
		return errors.Join(ErrCaptureBackend, err)
	}

	args := append(flags, addFlavor(targets, captureFlavor)...)

	return b.Runner.Run(ctx, prog, args...)
}

// CaptureCompilationDB builds per-target compilation databases and ingests
// them. Dependency targets are expanded first according to the configured
// strategy.
func (b *BuckCapture) CaptureCompilationDB(ctx context.Context, m mode.BuckCompilationDB) error {
	targets, flags := splitTargets(m.Args)
	if len(targets) == 0 {
		b.Logger.Info("no buck targets in build command, nothing to capture")

		return nil
	}

	targets, err := b.expandDeps(ctx, m.Prog, m.Deps, targets)
	if err != nil {
		return err
	}

	if err := b.recordTargets(ctx, targets); err != nil {
		return errors.Join(ErrCaptureBackend, err)
	}

	flavored := addFlavor(targets, compilationDBFlavor)

	// The original subcommand and flags carry over; only the targets gain
	// the database flavor.
	if err := b.Runner.Run(ctx, m.Prog, append(flags, flavored...)...); err != nil {
		return err
	}

	dbPaths, err := b.showOutput(ctx, m.Prog, flavored)
	if err != nil {
		return err
	}

	if len(dbPaths) == 0 {
		b.Logger.Warn("buck produced no compilation databases",
			slog.Int("targets", len(targets)),
		)

		return nil
	}

	return b.CDB.Capture(ctx, dbPaths, nil)
}

// CaptureGenruleMaster drives a full Buck build whose genrules emit
// sub-captures as a side effect. The returned flag reports whether anything
// was built: a command without targets is a no-op, not an error.
func (b *BuckCapture) CaptureGenruleMaster(ctx context.Context, m mode.BuckGenruleMaster) (bool, error) {
	if len(m.BuildCmd) == 0 {
		return false, nil
	}

	targets, _ := splitTargets(m.BuildCmd[1:])
	if len(targets) == 0 {
		b.Logger.Info("no buck targets in build command, nothing to capture")

		return false, nil
	}

	if err := b.recordTargets(ctx, targets); err != nil {
		return false, errors.Join(ErrCaptureBackend, err)
	}

	if err := b.Runner.Run(ctx, m.BuildCmd[0], m.BuildCmd[1:]...); err != nil {
		return false, err
	}

	return true, nil
}

// expandDeps widens the target list through buck query according to the
// dependency strategy. NoDeps returns the targets unchanged.
func (b *BuckCapture) expandDeps(ctx context.Context, prog string, deps mode.CompilationDatabaseDeps, targets []string) ([]string, error) {
	var expr string

	switch depth, limited := deps.Depth(); {
	case deps.All():
		expr = fmt.Sprintf("deps(set(%s))", strings.Join(targets, " "))
	case limited:
		expr = fmt.Sprintf("deps(set(%s), %d)", strings.Join(targets, " "), depth)
	default:
		return targets, nil
	}

	out, err := b.Runner.RunOutput(ctx, prog, "query", expr)
	if err != nil {
		return nil, fmt.Errorf("expand buck dependencies: %w", err)
	}

	expanded := splitLines(string(out))
	if len(expanded) == 0 {
		return targets, nil
	}

	b.Logger.Debug("expanded buck dependency targets",
		slog.Int("requested", len(targets)),
		slog.Int("expanded", len(expanded)),
	)

	return expanded, nil
}

// showOutput resolves the on-disk artifact of every flavored target. Buck
// prints one "<target> <path>" line per target.
func (b *BuckCapture) showOutput(ctx context.Context, prog string, flavored []string) ([]string, error) {
	args := append([]string{"targets", "--show-output"}, flavored...)

	out, err := b.Runner.RunOutput(ctx, prog, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve buck target outputs: %w", err)
	}

	var paths []string

	for _, line := range splitLines(string(out)) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		paths = append(paths, fields[len(fields)-1])
	}

	return paths, nil
}

func (b *BuckCapture) recordTargets(ctx context.Context, targets []string) error {
	for _, target := range targets {
		if err := b.Store.AddTarget(ctx, target, buckTargetKind); err != nil {
			return err
		}
	}

	return nil
}

// splitTargets separates Buck build targets from the flags around them.
// Targets are cell-qualified ("cell//pkg:name"), root-relative ("//pkg:name"),
// or package-relative (":name") labels.
func splitTargets(args []string) (targets, flags []string) {
	for _, arg := range args {
		if isBuckTarget(arg) {
			targets = append(targets, arg)
		} else {
			flags = append(flags, arg)
		}
	}

	return targets, flags
}

func isBuckTarget(arg string) bool {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return false
	}

	return strings.HasPrefix(arg, ":") || strings.Contains(arg, "//")
}

// addFlavor appends a Buck flavor to every target, extending an existing
// flavor list instead of stacking separators.
func addFlavor(targets []string, flavor string) []string {
	flavored := make([]string, len(targets))

	for i, target := range targets {
		if strings.Contains(target, "#") {
			flavored[i] = target + "," + flavor
		} else {
			flavored[i] = target + "#" + flavor
		}
	}

	return flavored
}

func splitLines(s string) []string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
