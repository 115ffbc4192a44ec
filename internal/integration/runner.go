package integration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// compilerEnvVars maps the entry points build tools consult onto the shim
// link each one must resolve to. The links all point at the scanforge
// binary; a shim re-entry decides from its own argv[0] which compiler it
// stands for.
var compilerEnvVars = map[string]string{
	"CC":    ShimNameCC,
	"CXX":   ShimNameCXX,
	"JAVAC": ShimNameJavac,
}

// BuildRunner executes build tools as subprocesses with the interception
// environment, streaming their output into the pipeline log.
type BuildRunner struct {
	// Logger receives the build tool's output line by line.
	Logger *slog.Logger

	// ResultsDir is exported to children so shim re-entries find the
	// canonical store they record into.
	ResultsDir string

	// ShimDir holds the compiler shim links installed by InstallShims.
	// The links are exported as the compiler entry points; empty disables
	// compiler rewriting (compilation-database backends do not need the
	// round trip).
	ShimDir string

	// Bin is the scanforge binary path, exported for genrule integrations
	// that re-invoke the pipeline themselves. Empty omits the variable.
	Bin string

	// ExtraEnv is appended after the interception variables.
	ExtraEnv []string
}

// interceptionEnv builds the child environment: the parent environment plus
// the capture marker, the results directory, and the compiler entry points.
func (r *BuildRunner) interceptionEnv() []string {
	env := append(os.Environ(),
		EnvInsideCapture+"=1",
		EnvResultsDir+"="+r.ResultsDir,
	)

	if r.Bin != "" {
		env = append(env, EnvBin+"="+r.Bin)
	}

	if r.ShimDir != "" {
		for v, shim := range compilerEnvVars {
			env = append(env, v+"="+filepath.Join(r.ShimDir, shim))
		}
	}

	return append(env, r.ExtraEnv...)
}

// Run executes the build tool and waits for it. A non-zero exit is the build
// tool's business (some targets failing to compile must not abort the
// capture) and is logged as a warning; failures to start the program at all
// are I/O faults and wrap ErrCaptureBackend.
func (r *BuildRunner) Run(ctx context.Context, prog string, args ...string) error {
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Env = r.interceptionEnv()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pipe %s stdout: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pipe %s stderr: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	// Both pipes drain concurrently; a build tool that fills one while we
	// block on the other would otherwise deadlock.
	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		r.stream(ctx, prog, stdout, slog.LevelInfo)
	}()

	go func() {
		defer wg.Done()
		r.stream(ctx, prog, stderr, slog.LevelWarn)
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger().WarnContext(ctx, "build command exited non-zero",
				"prog", prog, "code", exitErr.ExitCode())

			return nil
		}

		return fmt.Errorf("wait for %s: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	return nil
}

// RunOutput executes the program with the interception environment and
// returns its stdout. Unlike Run, a non-zero exit is an error here: callers
// use RunOutput for queries whose output they are about to parse.
func (r *BuildRunner) RunOutput(ctx context.Context, prog string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, prog, args...)
	cmd.Env = r.interceptionEnv()
	cmd.Stderr = newLogWriter(ctx, r.logger(), prog, slog.LevelWarn)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", prog, errors.Join(ErrCaptureBackend, err))
	}

	return out, nil
}

func (r *BuildRunner) stream(ctx context.Context, prog string, pipe io.Reader, level slog.Level) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		r.logger().Log(ctx, level, scanner.Text(), "prog", prog)
	}
}

func (r *BuildRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

// logWriter adapts an slog.Logger to io.Writer for subprocess stderr.
type logWriter struct {
	ctx    context.Context
	logger *slog.Logger
	prog   string
	level  slog.Level
}

func newLogWriter(ctx context.Context, logger *slog.Logger, prog string, level slog.Level) *logWriter {
	return &logWriter{ctx: ctx, logger: logger, prog: prog, level: level}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Log(w.ctx, w.level, string(p), "prog", w.prog)

	return len(p), nil
}

// teeLogWriter forwards subprocess output to another writer while also
// logging it, so a consumer crash loses no build output.
type teeLogWriter struct {
	log *logWriter
	out io.Writer
}

func newTeeLogWriter(ctx context.Context, logger *slog.Logger, prog string, out io.Writer) *teeLogWriter {
	return &teeLogWriter{
		log: newLogWriter(ctx, logger, prog, slog.LevelInfo),
		out: out,
	}
}

func (w *teeLogWriter) Write(p []byte) (int, error) {
	_, _ = w.log.Write(p)

	return w.out.Write(p)
}
