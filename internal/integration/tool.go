package integration

import (
	"context"
	"slices"

	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

// Arguments injected into build-tool invocations so the interception
// environment actually reaches the compiler processes.
const (
	// gradleNoDaemon forces an in-process build. The Gradle daemon is a
	// long-lived process that would not inherit the interception
	// environment.
	gradleNoDaemon = "--no-daemon"

	// mavenForkJavac makes the compiler plugin fork the javac binary named
	// by JAVAC instead of compiling through the in-process API.
	mavenForkJavac = "-Dmaven.compiler.forceJavacCompilerUse=true"
)

// ToolCapture runs plain build tools under the interception environment. The
// tools record nothing themselves; the compile steps they spawn re-enter
// through the shims and do the recording.
type ToolCapture struct {
	Runner *BuildRunner
}

// CaptureAnt runs an Ant build under interception.
func (t *ToolCapture) CaptureAnt(ctx context.Context, m mode.Ant) error {
	return t.Runner.Run(ctx, m.Prog, m.Args...)
}

// CaptureGradle runs a Gradle build under interception with the daemon
// forced off.
func (t *ToolCapture) CaptureGradle(ctx context.Context, m mode.Gradle) error {
	return t.Runner.Run(ctx, m.Prog, injectArg(m.Args, gradleNoDaemon)...)
}

// CaptureMaven runs a Maven build under interception with a forked compiler.
func (t *ToolCapture) CaptureMaven(ctx context.Context, m mode.Maven) error {
	return t.Runner.Run(ctx, m.Prog, injectArg(m.Args, mavenForkJavac)...)
}

// CaptureNdkBuild runs an NDK build under interception. An empty build
// command is a no-op.
func (t *ToolCapture) CaptureNdkBuild(ctx context.Context, m mode.NdkBuild) error {
	if len(m.BuildCmd) == 0 {
		return nil
	}

	return t.Runner.Run(ctx, m.BuildCmd[0], m.BuildCmd[1:]...)
}

// injectArg appends arg unless the invocation already carries it.
func injectArg(args []string, arg string) []string {
	if slices.Contains(args, arg) {
		return args
	}

	return append(slices.Clone(args), arg)
}
