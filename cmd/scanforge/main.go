// Package main is the scanforge command-line entry point. The same binary
// doubles as the compiler shims: when started under a shim name (through the
// CC, CXX, or JAVAC links a capture exports) it records one compile step and
// forwards to the real compiler instead of parsing pipeline commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/cmd/scanforge/commands"
	"github.com/Sumatoshi-tech/scanforge/internal/integration"
	"github.com/Sumatoshi-tech/scanforge/pkg/version"
)

func main() {
	if shim, ok := integration.DetectShim(os.Args[0]); ok {
		os.Exit(commands.RunShim(shim, os.Args[0], os.Args[1:]))
	}

	rootCmd := &cobra.Command{
		Use:   "scanforge",
		Short: "Scanforge - static analysis pipeline coordinator",
		Long: `Scanforge captures builds, analyzes the captured source, and reports
findings.

Commands:
  run       Capture a build, analyze it, and report findings
  capture   Capture a build into the results directory
  compile   Run a build command without capturing it
  analyze   Analyze an existing capture
  report    Re-render reports from an existing capture`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewCaptureCommand())
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewReportDiffCommand())
	rootCmd.AddCommand(commands.NewExploreCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "scanforge %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
