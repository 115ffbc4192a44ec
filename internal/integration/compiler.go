package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// CompilerCapture handles the native-compiler and Java-compiler capture
// modes. Direct compiler invocations have their translation units recorded
// before the real compiler runs; make-driven and launcher-driven builds run
// under interception so re-entrant shims record each compile step.
//
// Shim re-entries write straight into the canonical store; the store's WAL
// journaling carries concurrent writers from parallel build steps.
type CompilerCapture struct {
	Store   *capturedb.Store
	Logger  *slog.Logger
	Metrics *observability.PhaseMetrics
	Dir     results.Dir
	Runner  *BuildRunner

	// ForwardExit propagates the real compiler's exit status instead of
	// downgrading it to a warning. Re-entrant shim invocations set it so
	// the surrounding build sees compile failures unchanged.
	ForwardExit bool
}

// CaptureClang captures a C-family invocation. Make-driven builds run under
// interception; direct invocations are recorded here and handed to the real
// compiler.
func (c *CompilerCapture) CaptureClang(ctx context.Context, m mode.Clang) error {
	if m.Kind == mode.ClangKindMake {
		return c.Runner.Run(ctx, m.Prog, m.Args...)
	}

	return c.captureCompiler(ctx, FamilyC, m.Prog, m.Args)
}

// CaptureJavac captures a Java-compiler invocation. Launcher invocations run
// under interception; direct javac invocations are recorded here.
func (c *CompilerCapture) CaptureJavac(ctx context.Context, m mode.Javac) error {
	if m.Kind == mode.JavacKindJava {
		return c.Runner.Run(ctx, m.Prog, m.Args...)
	}

	return c.captureCompiler(ctx, FamilyJava, m.Prog, m.Args)
}

func (c *CompilerCapture) captureCompiler(ctx context.Context, family SourceFamily, prog string, args []string) error {
	recordErr := c.record(ctx, family, args)
	if recordErr != nil {
		if !c.ForwardExit {
			return errors.Join(ErrCaptureBackend, recordErr)
		}

		// A failed capture must not break the user's build; the compiler
		// still runs and its status still reaches the build tool.
		c.Logger.Warn("capture failed inside build, forwarding to compiler",
			slog.String("error", recordErr.Error()),
		)
	}

	real := realProgram(prog)

	err := execCompiler(ctx, real, args)
	if err == nil {
		return nil
	}

	if c.ForwardExit {
		return err
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		c.Logger.Warn("compiler exited with failure",
			slog.String("compiler", real),
			slog.Int("exit_code", exitErr.ExitCode()),
		)

		return nil
	}

	return errors.Join(ErrCaptureBackend, fmt.Errorf("run %s: %w", real, err))
}

func (c *CompilerCapture) record(ctx context.Context, family SourceFamily, args []string) error {
	sources := SourceFilesFromArgs(family, args)

	for _, src := range sources {
		language := detectLanguage(src)

		if err := c.Store.AddSourceFile(ctx, src, language); err != nil {
			return err
		}

		if _, err := WriteArgvArtifact(c.Dir.TUDir(), src, args); err != nil {
			return err
		}

		c.Metrics.AddCapturedFiles(ctx, 1, language)
	}

	if len(sources) > 0 {
		c.Logger.Debug("captured compiler invocation",
			slog.Int("sources", len(sources)),
		)
	}

	return nil
}
