package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// xcprettyDefaultProg is the log prettifier consulted when no override is
// configured.
const xcprettyDefaultProg = "xcpretty"

// xcodeCDBFile names the compilation database the prettifier emits under
// tmp/.
const xcodeCDBFile = "xcodebuild-cdb.json"

// XcodeCapture handles the two Xcode capture variants: a plain intercepted
// xcodebuild, and xcodebuild piped through a log prettifier that doubles as
// a compilation-database generator.
type XcodeCapture struct {
	Logger *slog.Logger
	Runner *BuildRunner
	CDB    *CDBCapture
	Dir    results.Dir

	// XcprettyProg overrides the prettifier binary.
	XcprettyProg string
}

// CaptureBuild runs xcodebuild under interception; compile steps re-enter
// through the shims.
func (x *XcodeCapture) CaptureBuild(ctx context.Context, m mode.XcodeBuild) error {
	return x.Runner.Run(ctx, m.Prog, m.Args...)
}

// CaptureXcpretty pipes xcodebuild through the prettifier and ingests the
// compilation database it reports. The raw build log still reaches the
// pipeline log so prettifier crashes lose no output.
func (x *XcodeCapture) CaptureXcpretty(ctx context.Context, m mode.XcodeXcpretty) error {
	cdbPath := filepath.Join(x.Dir.TmpDir(), xcodeCDBFile)

	if err := x.runPiped(ctx, m, cdbPath); err != nil {
		return err
	}

	return x.CDB.Capture(ctx, []string{cdbPath}, nil)
}

func (x *XcodeCapture) runPiped(ctx context.Context, m mode.XcodeXcpretty, cdbPath string) error {
	build := exec.CommandContext(ctx, m.Prog, m.Args...)
	build.Env = x.Runner.interceptionEnv()

	pretty := exec.CommandContext(ctx, x.xcprettyProg(),
		"--report", "json-compilation-database", "--output", cdbPath)

	prettyIn, err := pretty.StdinPipe()
	if err != nil {
		return fmt.Errorf("pipe prettifier stdin: %w", errors.Join(ErrCaptureBackend, err))
	}

	logger := x.logger()

	build.Stdout = newTeeLogWriter(ctx, logger, m.Prog, prettyIn)
	build.Stderr = newLogWriter(ctx, logger, m.Prog, slog.LevelWarn)
	pretty.Stdout = newLogWriter(ctx, logger, x.xcprettyProg(), slog.LevelInfo)
	pretty.Stderr = newLogWriter(ctx, logger, x.xcprettyProg(), slog.LevelWarn)

	if err := pretty.Start(); err != nil {
		return fmt.Errorf("start %s: %w", x.xcprettyProg(), errors.Join(ErrCaptureBackend, err))
	}

	buildErr := runBuildForPretty(ctx, build, logger, m.Prog)

	// The prettifier writes its report on EOF, so its stdin closes before
	// the wait regardless of how the build ended.
	_ = prettyIn.Close()

	if err := pretty.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.WarnContext(ctx, "prettifier exited non-zero",
				"prog", x.xcprettyProg(), "code", exitErr.ExitCode())
		} else {
			return fmt.Errorf("wait for %s: %w", x.xcprettyProg(), errors.Join(ErrCaptureBackend, err))
		}
	}

	return buildErr
}

func runBuildForPretty(ctx context.Context, build *exec.Cmd, logger *slog.Logger, prog string) error {
	if err := build.Start(); err != nil {
		return fmt.Errorf("start %s: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	if err := build.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.WarnContext(ctx, "build command exited non-zero",
				"prog", prog, "code", exitErr.ExitCode())

			return nil
		}

		return fmt.Errorf("wait for %s: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	return nil
}

func (x *XcodeCapture) xcprettyProg() string {
	if x.XcprettyProg != "" {
		return x.XcprettyProg
	}

	return xcprettyDefaultProg
}

func (x *XcodeCapture) logger() *slog.Logger {
	if x.Logger != nil {
		return x.Logger
	}

	return slog.Default()
}
