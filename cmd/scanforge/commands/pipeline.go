package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/scanforge/internal/analysis"
	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/config"
	"github.com/Sumatoshi-tech/scanforge/internal/driver"
	"github.com/Sumatoshi-tech/scanforge/internal/integration"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/internal/runstate"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
	"github.com/Sumatoshi-tech/scanforge/pkg/version"
)

// serviceName stamps the OTel resource of every pipeline invocation.
const serviceName = "scanforge"

// closeTimeout bounds the telemetry flush on pipeline teardown.
const closeTimeout = 5 * time.Second

// shimDirName is the directory under <results>/tmp holding the compiler
// shim links for the interception environment.
const shimDirName = "bin"

// pipeline bundles the collaborators assembled for one invocation: the
// results layout, the open capture store, the changed-files filter, and the
// driver wired to the integration backends.
type pipeline struct {
	cfg     *config.Config
	dir     results.Dir
	store   *capturedb.Store
	changed *source.Set
	driver  *driver.Driver
	logger  *slog.Logger
	runID   string

	shutdown func(ctx context.Context) error
	diag     *observability.DiagnosticsServer
	logFile  *os.File
}

// pipelineBuilder assembles a pipeline for a validated configuration.
// Commands hold one so tests can substitute a recording builder.
type pipelineBuilder func(cfg *config.Config, console io.Writer) (*pipeline, error)

// newPipeline assembles the full pipeline: results directory, run id,
// telemetry, capture store, shim installation, and the driver.
func newPipeline(cfg *config.Config, console io.Writer) (*pipeline, error) {
	dir := results.Dir(cfg.ResultsDir)

	createErr := dir.Create()
	if createErr != nil {
		return nil, fmt.Errorf("create results directory: %w", createErr)
	}

	runID := uuid.NewString()

	logDest, logFile, logErr := openLogDestination(cfg, dir)
	if logErr != nil {
		return nil, logErr
	}

	providers, initErr := observability.Init(observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		RunID:          runID,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		LogLevel:       slogLevel(cfg.Log.Level),
		LogJSON:        cfg.Log.Format == "json",
		LogWriter:      logDest,
	})
	if initErr != nil {
		if logFile != nil {
			_ = logFile.Close()
		}

		return nil, fmt.Errorf("initialize telemetry: %w", initErr)
	}

	p := &pipeline{
		cfg:      cfg,
		dir:      dir,
		logger:   providers.Logger,
		runID:    runID,
		shutdown: providers.Shutdown,
		logFile:  logFile,
	}

	assembleErr := p.assemble(providers, console)
	if assembleErr != nil {
		p.close()

		return nil, assembleErr
	}

	return p, nil
}

// assemble opens the capture store, installs the compiler shims, and wires
// the driver to its backends.
func (p *pipeline) assemble(providers observability.Providers, console io.Writer) error {
	metrics, metricsErr := observability.NewPhaseMetrics(providers.Meter)
	if metricsErr != nil {
		return fmt.Errorf("create phase metrics: %w", metricsErr)
	}

	store, storeErr := capturedb.Open(p.dir.Store())
	if storeErr != nil {
		return fmt.Errorf("open capture store: %w", storeErr)
	}

	p.store = store

	changed, changedErr := changedScope(p.cfg)
	if changedErr != nil {
		return fmt.Errorf("resolve changed files: %w", changedErr)
	}

	p.changed = changed

	binPath, exeErr := os.Executable()
	if exeErr != nil {
		return fmt.Errorf("locate own binary: %w", exeErr)
	}

	shimDir := filepath.Join(p.dir.TmpDir(), shimDirName)

	shimErr := integration.InstallShims(binPath, shimDir)
	if shimErr != nil {
		return shimErr
	}

	runner := &integration.BuildRunner{
		Logger:     p.logger,
		ResultsDir: p.dir.Path(),
		ShimDir:    shimDir,
		Bin:        binPath,
	}

	p.driver = &driver.Driver{
		Cfg:          p.cfg,
		Dir:          p.dir,
		Store:        store,
		RunState:     runstate.Open(p.dir.Path(), p.runID, p.logger),
		Engine:       newEngine(p.cfg, store, p.dir, p.logger),
		Backends:     p.backends(runner, metrics),
		Logger:       p.logger,
		Tracer:       providers.Tracer,
		Metrics:      metrics,
		RunID:        p.runID,
		IsOriginator: !integration.InsideCapture(),
		Console:      console,
		Exit:         p.exit,
	}

	if p.cfg.Telemetry.DiagnosticsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(
			p.cfg.Telemetry.DiagnosticsAddr, version.Version, p.storeReady)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}

		p.diag = diag
	}

	return nil
}

// backends binds the driver's capture routines to the integration package.
// The compilation-database variants rebuild their capture per call because
// the changed-files filter arrives with the dispatch.
func (p *pipeline) backends(runner *integration.BuildRunner, metrics *observability.PhaseMetrics) driver.Backends {
	compiler := &integration.CompilerCapture{
		Store:   p.store,
		Logger:  p.logger,
		Metrics: metrics,
		Dir:     p.dir,
		Runner:  runner,
	}

	tools := &integration.ToolCapture{Runner: runner}

	genrule := &integration.GenruleCapture{
		Logger:                 p.logger,
		Metrics:                metrics,
		Dir:                    p.dir,
		ExportChangedFunctions: p.cfg.ExportChangedFunctions,
	}

	cdb := func(changed *source.Set) *integration.CDBCapture {
		return &integration.CDBCapture{
			Store:   p.store,
			Logger:  p.logger,
			Metrics: metrics,
			Dir:     p.dir,
			Changed: changed,
		}
	}

	buck := func(changed *source.Set) *integration.BuckCapture {
		return &integration.BuckCapture{
			Store:  p.store,
			Logger: p.logger,
			Runner: runner,
			CDB:    cdb(changed),
		}
	}

	xcode := &integration.XcodeCapture{
		Logger: p.logger,
		Runner: runner,
		CDB:    cdb(nil),
		Dir:    p.dir,
	}

	return driver.Backends{
		Ant:             tools.CaptureAnt,
		BuckClangFlavor: buck(nil).CaptureFlavors,
		BuckCompilationDB: func(ctx context.Context, m mode.BuckCompilationDB, changed *source.Set) error {
			return buck(changed).CaptureCompilationDB(ctx, m)
		},
		BuckGenrule: func(ctx context.Context, _ mode.BuckGenrule) error {
			return genrule.Capture(ctx, p.cfg.GeneratedClasses)
		},
		BuckGenruleMaster: buck(nil).CaptureGenruleMaster,
		Clang:             compiler.CaptureClang,
		ClangCompilationDB: func(ctx context.Context, m mode.ClangCompilationDB, changed *source.Set) error {
			plain, escaped := splitDBFiles(m.DBFiles)

			return cdb(changed).Capture(ctx, plain, escaped)
		},
		Gradle:        tools.CaptureGradle,
		Javac:         compiler.CaptureJavac,
		Maven:         tools.CaptureMaven,
		NdkBuild:      tools.CaptureNdkBuild,
		XcodeBuild:    xcode.CaptureBuild,
		XcodeXcpretty: xcode.CaptureXcpretty,
	}
}

// runPipeline drives the phases for one resolved mode: capture when
// enabled, then merge, analysis, and reporting as the command calls for,
// then the epilogue.
func (p *pipeline) runPipeline(ctx context.Context, m mode.Mode, cmd driver.Command) error {
	p.logger.InfoContext(ctx, "pipeline starting",
		slog.String("mode", m.Tag()),
		slog.String("command", cmd.String()),
		slog.String("results_dir", p.dir.Path()),
	)

	if p.cfg.Capture {
		captureErr := p.driver.Capture(ctx, m, p.changed)
		if captureErr != nil {
			return captureErr
		}
	}

	analyzeErr := p.driver.AnalyzeAndReport(ctx, m, p.changed, cmd)
	if analyzeErr != nil {
		return analyzeErr
	}

	return p.driver.RunEpilogue(ctx)
}

// resolveMode maps the build command and configuration to a capture mode.
func (p *pipeline) resolveMode(args []string) (mode.Mode, error) {
	inv, err := invocationFor(p.cfg, args, p.driver.IsOriginator)
	if err != nil {
		return nil, err
	}

	return mode.Resolve(inv, mode.CompiledSupport())
}

// exit flushes telemetry and terminates the process. Wired as the driver's
// exiter so a fail-on-issue exit does not drop buffered spans.
func (p *pipeline) exit(code int) {
	p.close()
	os.Exit(code)
}

// close releases everything the pipeline holds. Safe after a normal
// epilogue: the store close is idempotent.
func (p *pipeline) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if p.diag != nil {
		diagErr := p.diag.Close()
		if diagErr != nil {
			p.logger.Warn("diagnostics server close failed", "error", diagErr)
		}
	}

	if p.store != nil {
		storeErr := p.store.Close()
		if storeErr != nil {
			p.logger.Warn("capture store close failed", "error", storeErr)
		}
	}

	if p.shutdown != nil {
		shutdownErr := p.shutdown(ctx)
		if shutdownErr != nil {
			p.logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}

	if p.logFile != nil {
		_ = p.logFile.Close()
	}
}

// storeReady is the readiness probe for the diagnostics server.
func (p *pipeline) storeReady(ctx context.Context) error {
	if p.store == nil {
		return errors.New("capture store not open")
	}

	_, err := p.store.IsEmpty(ctx)

	return err
}

// invocationFor translates configuration and the build command into the
// resolver's invocation.
func invocationFor(cfg *config.Config, buildCmd []string, isOriginator bool) (mode.Invocation, error) {
	inv := mode.Invocation{
		BuildCmd:         buildCmd,
		GeneratedClasses: cfg.GeneratedClasses,
		XcprettyEnabled:  cfg.Xcpretty,
		IsOriginator:     isOriginator,
	}

	if cfg.ForceIntegration != "" {
		system, ok := mode.ParseBuildSystem(cfg.ForceIntegration)
		if !ok {
			return mode.Invocation{}, fmt.Errorf("force-integration %q: %w",
				cfg.ForceIntegration, mode.ErrUnsupportedBackend)
		}

		inv.ForcedIntegration = &system
	}

	if cfg.Buck.Mode != "" {
		strategy, ok := mode.ParseBuckStrategy(cfg.Buck.Mode)
		if !ok {
			return mode.Invocation{}, fmt.Errorf("buck-mode %q: %w",
				cfg.Buck.Mode, mode.ErrAmbiguousBuckIntegration)
		}

		inv.BuckMode = &mode.BuckMode{Strategy: strategy, Deps: buckDeps(cfg.Buck)}
	}

	for _, path := range cfg.CompilationDBFiles {
		inv.CompilationDBFiles = append(inv.CompilationDBFiles, mode.EscapedPath{Path: path})
	}

	for _, path := range cfg.CompilationDBEscapedFiles {
		inv.CompilationDBFiles = append(inv.CompilationDBFiles, mode.EscapedPath{Path: path, Escaped: true})
	}

	return inv, nil
}

// buckDeps maps the Buck dependency-expansion settings onto the resolver's
// policy value. Validation already rejected the conflicting combination.
func buckDeps(bc config.BuckConfig) mode.CompilationDatabaseDeps {
	switch {
	case bc.CdbAllDeps:
		return mode.AllDeps()
	case bc.CdbDepsDepth > 0:
		return mode.DepsUpToDepth(bc.CdbDepsDepth)
	default:
		return mode.NoDeps()
	}
}

// splitDBFiles separates compilation-database references by path escaping.
func splitDBFiles(files []mode.EscapedPath) (plain, escaped []string) {
	for _, f := range files {
		if f.Escaped {
			escaped = append(escaped, f.Path)
		} else {
			plain = append(plain, f.Path)
		}
	}

	return plain, escaped
}

// changedScope builds the changed-files filter from the configured source.
// Nil means unscoped: every captured file is analyzed.
func changedScope(cfg *config.Config) (*source.Set, error) {
	switch {
	case cfg.ChangedFiles.Index != "":
		return source.FromIndexFile(cfg.ChangedFiles.Index)
	case cfg.ChangedFiles.GitBase != "":
		return source.FromGit(".", cfg.ChangedFiles.GitBase)
	case cfg.ChangedFiles.Git:
		return source.FromGit(".", "")
	default:
		return nil, nil
	}
}

// newEngine picks the analysis engine: an external command when configured,
// the built-in checkers otherwise.
func newEngine(cfg *config.Config, store *capturedb.Store, dir results.Dir, logger *slog.Logger) analysis.Engine {
	if cfg.Analyzer.Command != "" {
		return analysis.NewExternal(cfg.Analyzer.Command, cfg.Analyzer.Args, dir, logger)
	}

	return analysis.NewBuiltin(store, logger)
}

// openLogDestination resolves the log writer: stderr alone, or stderr teed
// into the results-directory log file.
func openLogDestination(cfg *config.Config, dir results.Dir) (io.Writer, *os.File, error) {
	if !cfg.Log.File {
		return os.Stderr, nil, nil
	}

	f, err := os.OpenFile(dir.Log(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return io.MultiWriter(os.Stderr, f), f, nil
}

// slogLevel maps the configured level name to its slog value. Validation
// already rejected unknown names.
func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newConsoleLogger builds a stderr logger for verbs that run no pipeline
// and therefore skip telemetry initialization.
func newConsoleLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Log.Level)}

	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
