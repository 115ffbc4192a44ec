package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/integration"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/pkg/version"
)

// RunShim handles one compiler-shim re-entry: record the translation unit
// into the parent capture's store, forward to the real compiler, and return
// the exit code the surrounding build tool must see.
func RunShim(shim mode.Shim, argv0 string, argv []string) int {
	code, err := runShim(shim, argv0, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanforge shim: %v\n", err)
	}

	return code
}

func runShim(shim mode.Shim, argv0 string, argv []string) (int, error) {
	dir := integration.ResultsDirFromEnv()
	if dir == "" {
		return 1, fmt.Errorf("%s invoked outside a capture: %s is unset",
			filepath.Base(argv0), integration.EnvResultsDir)
	}

	// No OTLP endpoint here: a shim runs once per compile step and must
	// stay cheap. Providers are no-ops, the logger speaks to the build's
	// stderr at warning level.
	providers, initErr := observability.Init(observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		RunID:          uuid.NewString(),
		LogLevel:       slog.LevelWarn,
	})
	if initErr != nil {
		return 1, initErr
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		_ = providers.Shutdown(ctx)
	}()

	metrics, metricsErr := observability.NewPhaseMetrics(providers.Meter)
	if metricsErr != nil {
		return 1, metricsErr
	}

	m, resolveErr := mode.Resolve(mode.Invocation{
		Shim:     shim,
		ShimProg: argv0,
		ShimArgs: argv,
	}, mode.CompiledSupport())
	if resolveErr != nil {
		return 1, resolveErr
	}

	store, storeErr := capturedb.Open(results.Dir(dir).Store())
	if storeErr != nil {
		return 1, storeErr
	}
	defer store.Close()

	capture := &integration.CompilerCapture{
		Store:       store,
		Logger:      providers.Logger,
		Metrics:     metrics,
		Dir:         results.Dir(dir),
		ForwardExit: true,
	}

	ctx := context.Background()

	var captureErr error

	switch v := m.(type) {
	case mode.Clang:
		captureErr = capture.CaptureClang(ctx, v)
	case mode.Javac:
		captureErr = capture.CaptureJavac(ctx, v)
	default:
		return 1, fmt.Errorf("shim resolved to non-compiler mode %q", m.Tag())
	}

	if captureErr == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(captureErr, &exitErr) {
		// The real compiler failed; its status passes through silently so
		// the build tool sees exactly what the compiler reported.
		return exitErr.ExitCode(), nil
	}

	return 1, captureErr
}
