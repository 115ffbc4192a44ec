package driver

// Command is the top-level verb the binary was invoked with. The phase
// decisions key off it: capture-only verbs never analyze or report.
type Command int

const (
	// CommandCapture captures a build and stops.
	CommandCapture Command = iota
	// CommandCompile runs the build command without recording, for builds
	// that must complete once (configure steps) before a real capture.
	CommandCompile
	// CommandExplore browses the capture store.
	CommandExplore
	// CommandReport re-renders reports from existing results.
	CommandReport
	// CommandReportDiff classifies current findings against a previous
	// report.
	CommandReportDiff
	// CommandAnalyze analyzes an existing capture.
	CommandAnalyze
	// CommandRun captures and analyzes in one invocation.
	CommandRun
)

// String returns the CLI spelling of the command.
func (c Command) String() string {
	switch c {
	case CommandCapture:
		return "capture"
	case CommandCompile:
		return "compile"
	case CommandExplore:
		return "explore"
	case CommandReport:
		return "report"
	case CommandReportDiff:
		return "report-diff"
	case CommandAnalyze:
		return "analyze"
	case CommandRun:
		return "run"
	default:
		return "unknown"
	}
}

// captureOnly reports whether the command stops after its own phase and
// never reaches analysis or reporting through the orchestrator.
func (c Command) captureOnly() bool {
	switch c {
	case CommandCapture, CommandCompile, CommandExplore, CommandReport, CommandReportDiff:
		return true
	case CommandAnalyze, CommandRun:
		return false
	default:
		return true
	}
}
