package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// changedFilesName is the scope file handed to the external engine.
const changedFilesName = "changed-files.txt"

const scannerBufferLimit = 1024 * 1024

// External runs a configured analyzer binary as a subprocess. The binary owns
// its analysis semantics and writes findings into the results directory; the
// engine hands it the directory, the changed-files scope, and the
// whole-program flag on the command line. Unlike build tools, a failing
// analyzer fails the run.
type External struct {
	prog   string
	args   []string
	dir    results.Dir
	logger *slog.Logger
}

// NewExternal constructs an engine around the analyzer command.
func NewExternal(prog string, args []string, dir results.Dir, logger *slog.Logger) *External {
	return &External{
		prog:   prog,
		args:   args,
		dir:    dir,
		logger: logger,
	}
}

// Analyze invokes the analyzer over the results directory. A configured
// changed-files scope is written to a newline-delimited file and passed via
// --changed-files.
func (e *External) Analyze(ctx context.Context, changed *source.Set) error {
	argv := slices.Clone(e.args)
	argv = append(argv, "--results-dir", e.dir.Path())

	if changed != nil {
		scopePath, err := e.writeScope(changed)
		if err != nil {
			return err
		}

		argv = append(argv, "--changed-files", scopePath)
	}

	return e.run(ctx, argv)
}

// WholeProgramConcurrency reinvokes the analyzer with the cross-file pass
// selected.
func (e *External) WholeProgramConcurrency(ctx context.Context) error {
	argv := slices.Clone(e.args)
	argv = append(argv, "--results-dir", e.dir.Path(), "--whole-program-concurrency")

	return e.run(ctx, argv)
}

func (e *External) writeScope(changed *source.Set) (string, error) {
	if err := os.MkdirAll(e.dir.TmpDir(), 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}

	var sb strings.Builder

	for _, id := range changed.Sorted() {
		sb.WriteString(id.String())
		sb.WriteByte('\n')
	}

	path := filepath.Join(e.dir.TmpDir(), changedFilesName)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write changed-files scope: %w", err)
	}

	return path, nil
}

func (e *External) run(ctx context.Context, argv []string) error {
	e.logger.Info("running analyzer", "prog", e.prog, "args", argv)

	cmd := exec.CommandContext(ctx, e.prog, argv...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("analyzer stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("analyzer stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start analyzer %s: %w", e.prog, err)
	}

	var wg sync.WaitGroup

	wg.Add(2)

	go e.stream(&wg, stdout, slog.LevelInfo)
	go e.stream(&wg, stderr, slog.LevelWarn)

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("analyzer %s: %w", e.prog, err)
	}

	return nil
}

func (e *External) stream(wg *sync.WaitGroup, r io.Reader, level slog.Level) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), scannerBufferLimit)

	for scanner.Scan() {
		e.logger.Log(context.Background(), level, scanner.Text(),
			"analyzer", filepath.Base(e.prog))
	}
}
