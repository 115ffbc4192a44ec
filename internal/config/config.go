// Package config provides configuration loading and validation for scanforge.
package config

import "errors"

// Config is the top-level configuration struct for scanforge.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	// ResultsDir is the directory holding the capture store, intermediate
	// artifacts, and reports.
	ResultsDir string `mapstructure:"results_dir"`

	// Capture enables the capture phase. Analysis is gated on it too, so
	// with capture off the run reports whatever the results directory
	// already holds.
	Capture bool `mapstructure:"capture"`

	// Report enables report writing and rendering.
	Report bool `mapstructure:"report"`

	// Quiet suppresses the console findings echo. Report files are still
	// written.
	Quiet bool `mapstructure:"quiet"`

	// MergeAlways forces the sub-capture merge regardless of mode.
	MergeAlways bool `mapstructure:"merge"`

	// FailOnIssue makes the process exit with FailOnIssueExitCode when the
	// findings report contains at least one finding.
	FailOnIssue bool `mapstructure:"fail_on_issue"`

	// FailOnIssueExitCode is the exit code used by FailOnIssue.
	FailOnIssueExitCode int `mapstructure:"fail_on_issue_exit_code"`

	// ForceIntegration overrides build-system inference by backend name.
	ForceIntegration string `mapstructure:"force_integration"`

	// GeneratedClasses is the genrule-compatibility classes path.
	GeneratedClasses string `mapstructure:"generated_classes"`

	// CompilationDBFiles are compilation-database files used as given.
	CompilationDBFiles []string `mapstructure:"compilation_database"`

	// CompilationDBEscapedFiles are compilation-database files whose paths
	// carry percent escapes.
	CompilationDBEscapedFiles []string `mapstructure:"compilation_database_escaped"`

	// Xcpretty pipes xcodebuild output through a log prettifier.
	Xcpretty bool `mapstructure:"xcpretty"`

	// CacheCapture marks the results directory as destined for an external
	// build cache: the store is canonicalized before cleanup.
	CacheCapture bool `mapstructure:"cache_capture"`

	// ExportChangedFunctions merges per-capture changed-functions exports.
	ExportChangedFunctions bool `mapstructure:"export_changed_functions"`

	Buck         BuckConfig         `mapstructure:"buck"`
	ChangedFiles ChangedFilesConfig `mapstructure:"changed_files"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	Log          LogConfig          `mapstructure:"log"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// BuckConfig selects the Buck capture strategy and its compilation-database
// dependency expansion.
type BuckConfig struct {
	// Mode is the capture strategy name; empty means Buck builds are
	// rejected as ambiguous.
	Mode string `mapstructure:"mode"`

	// CdbAllDeps expands dependency targets at every depth.
	CdbAllDeps bool `mapstructure:"cdb_all_deps"`

	// CdbDepsDepth limits dependency expansion to the given depth. Zero
	// means no dependency expansion.
	CdbDepsDepth int `mapstructure:"cdb_deps_depth"`
}

// ChangedFilesConfig scopes capture and analysis to changed files.
type ChangedFilesConfig struct {
	// Index is a newline-delimited file listing changed paths.
	Index string `mapstructure:"index"`

	// GitBase diffs HEAD against the given revision.
	GitBase string `mapstructure:"git_base"`

	// Git scopes to working-tree changes relative to HEAD.
	Git bool `mapstructure:"git"`
}

// Scoped reports whether any changed-files source is configured.
func (c ChangedFilesConfig) Scoped() bool {
	return c.Index != "" || c.GitBase != "" || c.Git
}

// AnalyzerConfig configures the analysis engine.
type AnalyzerConfig struct {
	// Command runs an external engine instead of the built-in one.
	Command string `mapstructure:"command"`

	// Args are extra arguments for the external engine.
	Args []string `mapstructure:"args"`

	// WholeProgramConcurrency runs the concurrency pass after per-file
	// analysis.
	WholeProgramConcurrency bool `mapstructure:"whole_program_concurrency"`

	// ReportConsoleLimit caps findings echoed to the console. Negative
	// means unlimited.
	ReportConsoleLimit int `mapstructure:"report_console_limit"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `mapstructure:"format"`

	// Level is "debug", "info", "warn", or "error".
	Level string `mapstructure:"level"`

	// File tees logs into <results_dir>/scanforge.log.
	File bool `mapstructure:"file"`
}

// TelemetryConfig configures OpenTelemetry export and the diagnostics server.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// export; spans and metrics become no-ops.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `mapstructure:"otlp_insecure"`

	// SampleRatio is the trace sampling ratio in [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio"`

	// DiagnosticsAddr serves Prometheus /metrics and /healthz when set.
	DiagnosticsAddr string `mapstructure:"diagnostics_addr"`
}

// Exit code bounds for fail-on-issue.
const (
	minExitCode = 1
	maxExitCode = 255
)

// Sentinel errors for configuration validation.
var (
	// ErrEmptyResultsDir indicates results_dir is empty.
	ErrEmptyResultsDir = errors.New("results_dir must not be empty")
	// ErrInvalidExitCode indicates fail_on_issue_exit_code is out of range.
	ErrInvalidExitCode = errors.New("fail_on_issue_exit_code must be between 1 and 255")
	// ErrConflictingBuckDeps indicates both dependency expansions are set.
	ErrConflictingBuckDeps = errors.New("buck.cdb_all_deps and buck.cdb_deps_depth are mutually exclusive")
	// ErrInvalidBuckDepth indicates a negative dependency depth.
	ErrInvalidBuckDepth = errors.New("buck.cdb_deps_depth must be non-negative")
	// ErrConflictingChangedFiles indicates more than one changed-files source.
	ErrConflictingChangedFiles = errors.New("changed_files.index, changed_files.git_base and changed_files.git are mutually exclusive")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("log.format must be text or json")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("log.level must be debug, info, warn, or error")
	// ErrInvalidSampleRatio indicates a sampling ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.ResultsDir == "" {
		return ErrEmptyResultsDir
	}

	if c.FailOnIssueExitCode < minExitCode || c.FailOnIssueExitCode > maxExitCode {
		return ErrInvalidExitCode
	}

	buckErr := c.validateBuck()
	if buckErr != nil {
		return buckErr
	}

	changedErr := c.validateChangedFiles()
	if changedErr != nil {
		return changedErr
	}

	logErr := c.validateLog()
	if logErr != nil {
		return logErr
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

func (c *Config) validateBuck() error {
	if c.Buck.CdbDepsDepth < 0 {
		return ErrInvalidBuckDepth
	}

	if c.Buck.CdbAllDeps && c.Buck.CdbDepsDepth > 0 {
		return ErrConflictingBuckDeps
	}

	return nil
}

func (c *Config) validateChangedFiles() error {
	sources := 0

	if c.ChangedFiles.Index != "" {
		sources++
	}

	if c.ChangedFiles.GitBase != "" {
		sources++
	}

	if c.ChangedFiles.Git {
		sources++
	}

	if sources > 1 {
		return ErrConflictingChangedFiles
	}

	return nil
}

func (c *Config) validateLog() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	return nil
}
