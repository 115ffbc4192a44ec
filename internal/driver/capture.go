package driver

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// Backends are the per-mode capture routines. The command wiring binds them
// to the integration package; tests substitute spies. Compilation-database
// variants additionally receive the changed-files filter.
type Backends struct {
	Ant                func(ctx context.Context, m mode.Ant) error
	BuckClangFlavor    func(ctx context.Context, m mode.BuckClangFlavor) error
	BuckCompilationDB  func(ctx context.Context, m mode.BuckCompilationDB, changed *source.Set) error
	BuckGenrule        func(ctx context.Context, m mode.BuckGenrule) error
	BuckGenruleMaster  func(ctx context.Context, m mode.BuckGenruleMaster) (built bool, err error)
	Clang              func(ctx context.Context, m mode.Clang) error
	ClangCompilationDB func(ctx context.Context, m mode.ClangCompilationDB, changed *source.Set) error
	Gradle             func(ctx context.Context, m mode.Gradle) error
	Javac              func(ctx context.Context, m mode.Javac) error
	Maven              func(ctx context.Context, m mode.Maven) error
	NdkBuild           func(ctx context.Context, m mode.NdkBuild) error
	XcodeBuild         func(ctx context.Context, m mode.XcodeBuild) error
	XcodeXcpretty      func(ctx context.Context, m mode.XcodeXcpretty) error
}

// Capture dispatches the resolved mode to its backend routine inside the
// phase instrumentation. Analyze dispatches nothing: there is no build to
// capture. Build failures inside a backend are warnings, not errors, so a
// returned error always means an I/O-level fault.
func (d *Driver) Capture(ctx context.Context, m mode.Mode, changed *source.Set) error {
	if _, ok := m.(mode.Analyze); ok {
		return nil
	}

	return observability.RunPhase(ctx, d.Tracer, d.Metrics, "capture", m.Tag(),
		func(ctx context.Context) error {
			return d.dispatch(ctx, m, changed)
		})
}

func (d *Driver) dispatch(ctx context.Context, m mode.Mode, changed *source.Set) error {
	switch v := m.(type) {
	case mode.Ant:
		return d.Backends.Ant(ctx, v)
	case mode.BuckClangFlavor:
		return d.Backends.BuckClangFlavor(ctx, v)
	case mode.BuckCompilationDB:
		return d.Backends.BuckCompilationDB(ctx, v, changed)
	case mode.BuckGenrule:
		return d.captureGenrule(ctx, v)
	case mode.BuckGenruleMaster:
		return d.captureGenruleMaster(ctx, v)
	case mode.Clang:
		return d.Backends.Clang(ctx, v)
	case mode.ClangCompilationDB:
		return d.Backends.ClangCompilationDB(ctx, v, changed)
	case mode.Gradle:
		return d.Backends.Gradle(ctx, v)
	case mode.Javac:
		return d.Backends.Javac(ctx, v)
	case mode.Maven:
		return d.Backends.Maven(ctx, v)
	case mode.NdkBuild:
		return d.Backends.NdkBuild(ctx, v)
	case mode.XcodeBuild:
		return d.Backends.XcodeBuild(ctx, v)
	case mode.XcodeXcpretty:
		return d.Backends.XcodeXcpretty(ctx, v)
	default:
		return fmt.Errorf("no capture backend for mode %q", m.Tag())
	}
}

// captureGenrule records a genrule child's sub-capture and schedules the
// merge. The flag flips here in the dispatcher, after the sub-capture is on
// disk, so a later analyze invocation picks it up even if this child is the
// last process to run.
func (d *Driver) captureGenrule(ctx context.Context, m mode.BuckGenrule) error {
	if err := d.Backends.BuckGenrule(ctx, m); err != nil {
		return err
	}

	return d.RunState.SetMergePending(true)
}

// captureGenruleMaster drives the full Buck build. Merge scheduling follows
// what the build did: a build with nothing to do leaves no sub-captures
// behind and must not schedule a merge.
func (d *Driver) captureGenruleMaster(ctx context.Context, m mode.BuckGenruleMaster) error {
	built, err := d.Backends.BuckGenruleMaster(ctx, m)
	if err != nil {
		return err
	}

	if !built {
		d.Logger.InfoContext(ctx, "buck build produced nothing, merge not scheduled")

		return nil
	}

	return d.RunState.SetMergePending(true)
}
