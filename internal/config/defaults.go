package config

// Pipeline defaults.
const (
	DefaultResultsDir          = "scanforge-out"
	DefaultCapture             = true
	DefaultReport              = true
	DefaultFailOnIssueExitCode = 2
)

// Analyzer defaults.
const (
	DefaultReportConsoleLimit = 5
)

// Logging defaults.
const (
	DefaultLogFormat = "text"
	DefaultLogLevel  = "info"
	DefaultLogToFile = true
)

// Telemetry defaults.
const (
	DefaultTelemetrySampleRatio = 1.0
)
