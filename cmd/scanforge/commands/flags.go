// Package commands wires the scanforge CLI verbs to the pipeline packages.
// Each command loads configuration, overlays the flags the user set, and
// hands the result to an assembled pipeline.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/scanforge/internal/config"
)

// pipelineFlags mirrors the configurable pipeline settings onto command-line
// flags. Flag values overlay the loaded configuration only when the user
// actually set them, so config-file and environment settings survive
// untouched flags.
type pipelineFlags struct {
	configPath string

	resultsDir string
	quiet      bool
	logFormat  string
	logLevel   string

	forceIntegration     string
	buckMode             string
	buckCdbAllDeps       bool
	buckCdbDepsDepth     int
	merge                bool
	failOnIssue          bool
	failOnIssueExitCode  int
	noReport             bool
	cacheCapture         bool
	xcpretty             bool
	generatedClasses     string
	compilationDB        []string
	compilationDBEscaped []string
	changedIndex         string
	changedGitBase       string
	changedGit           bool
	exportChangedFuncs   bool

	otlpEndpoint    string
	otlpInsecure    bool
	sampleRatio     float64
	diagnosticsAddr string
}

// registerBase adds the flags every verb carries: config selection, results
// directory, and console behavior.
func (pf *pipelineFlags) registerBase(cmd *cobra.Command) {
	fl := cmd.Flags()

	fl.StringVar(&pf.configPath, "config", "", "Config file (default: .scanforge.yaml in CWD or $HOME)")
	fl.StringVarP(&pf.resultsDir, "results-dir", "o", config.DefaultResultsDir, "Directory for the capture store and reports")
	fl.BoolVarP(&pf.quiet, "quiet", "q", false, "Suppress the console findings echo")
	fl.StringVar(&pf.logFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
	fl.StringVar(&pf.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, or error")
}

// register adds the full pipeline flag surface on top of the base set.
func (pf *pipelineFlags) register(cmd *cobra.Command) {
	pf.registerBase(cmd)

	fl := cmd.Flags()

	fl.StringVar(&pf.forceIntegration, "force-integration", "",
		"Override build-system inference (ant, buck, clang, gradle, java, javac, make, maven, ndk-build, xcodebuild)")
	fl.StringVar(&pf.buckMode, "buck-mode", "",
		"Buck capture strategy: clang-flavors, clang-compilation-db, combined-genrule, or java-genrule-master")
	fl.BoolVar(&pf.buckCdbAllDeps, "buck-cdb-all-deps", false, "Expand Buck compilation-database deps at every depth")
	fl.IntVar(&pf.buckCdbDepsDepth, "buck-cdb-deps-depth", 0, "Expand Buck compilation-database deps down to this depth")
	fl.BoolVar(&pf.merge, "merge", false, "Force the sub-capture merge regardless of mode")
	fl.BoolVar(&pf.failOnIssue, "fail-on-issue", false, "Exit non-zero when the report contains findings")
	fl.IntVar(&pf.failOnIssueExitCode, "fail-on-issue-exit-code", config.DefaultFailOnIssueExitCode,
		"Exit code used with --fail-on-issue")
	fl.BoolVar(&pf.noReport, "no-report", false, "Skip report writing and rendering")
	fl.BoolVar(&pf.cacheCapture, "cache-capture", false, "Canonicalize the store for an external build cache")
	fl.BoolVar(&pf.xcpretty, "xcpretty", false, "Pipe xcodebuild output through xcpretty")
	fl.StringVar(&pf.generatedClasses, "generated-classes", "", "Capture a genrule-generated classes tree instead of a build")
	fl.StringSliceVar(&pf.compilationDB, "compilation-database", nil, "Capture from these compilation-database files")
	fl.StringSliceVar(&pf.compilationDBEscaped, "compilation-database-escaped", nil,
		"Capture from these compilation-database files with percent-escaped paths")
	fl.StringVar(&pf.changedIndex, "changed-files-index", "", "Scope analysis to the paths listed in this file")
	fl.StringVar(&pf.changedGitBase, "changed-files-git-base", "", "Scope analysis to files changed since this git revision")
	fl.BoolVar(&pf.changedGit, "changed-files-git", false, "Scope analysis to uncommitted git changes")
	fl.BoolVar(&pf.exportChangedFuncs, "export-changed-functions", false, "Merge per-capture changed-functions exports")

	fl.StringVar(&pf.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address; empty disables telemetry export")
	fl.BoolVar(&pf.otlpInsecure, "otlp-insecure", false, "Disable TLS for the OTLP connection")
	fl.Float64Var(&pf.sampleRatio, "trace-sample-ratio", config.DefaultTelemetrySampleRatio, "Trace sampling ratio in [0, 1]")
	fl.StringVar(&pf.diagnosticsAddr, "diagnostics-addr", "", "Serve Prometheus metrics and health checks on this address")
}

// loadConfig loads the configuration and overlays every flag the user set.
// Unregistered flag names report unchanged, so verbs carrying only the base
// flags share this overlay as-is.
func (pf *pipelineFlags) loadConfig(fl *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(pf.configPath)
	if err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"results-dir":                  func() { cfg.ResultsDir = pf.resultsDir },
		"quiet":                        func() { cfg.Quiet = pf.quiet },
		"log-format":                   func() { cfg.Log.Format = pf.logFormat },
		"log-level":                    func() { cfg.Log.Level = pf.logLevel },
		"force-integration":            func() { cfg.ForceIntegration = pf.forceIntegration },
		"buck-mode":                    func() { cfg.Buck.Mode = pf.buckMode },
		"buck-cdb-all-deps":            func() { cfg.Buck.CdbAllDeps = pf.buckCdbAllDeps },
		"buck-cdb-deps-depth":          func() { cfg.Buck.CdbDepsDepth = pf.buckCdbDepsDepth },
		"merge":                        func() { cfg.MergeAlways = pf.merge },
		"fail-on-issue":                func() { cfg.FailOnIssue = pf.failOnIssue },
		"fail-on-issue-exit-code":      func() { cfg.FailOnIssueExitCode = pf.failOnIssueExitCode },
		"no-report":                    func() { cfg.Report = !pf.noReport },
		"cache-capture":                func() { cfg.CacheCapture = pf.cacheCapture },
		"xcpretty":                     func() { cfg.Xcpretty = pf.xcpretty },
		"generated-classes":            func() { cfg.GeneratedClasses = pf.generatedClasses },
		"compilation-database":         func() { cfg.CompilationDBFiles = pf.compilationDB },
		"compilation-database-escaped": func() { cfg.CompilationDBEscapedFiles = pf.compilationDBEscaped },
		"changed-files-index":          func() { cfg.ChangedFiles.Index = pf.changedIndex },
		"changed-files-git-base":       func() { cfg.ChangedFiles.GitBase = pf.changedGitBase },
		"changed-files-git":            func() { cfg.ChangedFiles.Git = pf.changedGit },
		"export-changed-functions":     func() { cfg.ExportChangedFunctions = pf.exportChangedFuncs },
		"otlp-endpoint":                func() { cfg.Telemetry.OTLPEndpoint = pf.otlpEndpoint },
		"otlp-insecure":                func() { cfg.Telemetry.OTLPInsecure = pf.otlpInsecure },
		"trace-sample-ratio":           func() { cfg.Telemetry.SampleRatio = pf.sampleRatio },
		"diagnostics-addr":             func() { cfg.Telemetry.DiagnosticsAddr = pf.diagnosticsAddr },
	}

	for name, apply := range overrides {
		if fl.Changed(name) {
			apply()
		}
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate flags: %w", validateErr)
	}

	return cfg, nil
}
