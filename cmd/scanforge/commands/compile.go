package commands

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

// CompileCommand holds the flags for the compile command.
type CompileCommand struct {
	flags pipelineFlags
}

// NewCompileCommand creates and configures the compile command.
func NewCompileCommand() *cobra.Command {
	cmd := &CompileCommand{}

	cobraCmd := &cobra.Command{
		Use:   "compile [flags] -- <build command>",
		Short: "Run a build command without capturing it",
		Long: `Compile runs the build command with no interception environment, for
configure steps that must see the plain toolchain. Unlike captured builds,
a failing command fails this verb.`,
		Args: cobra.MinimumNArgs(1),
		RunE: cmd.run,
	}

	cmd.flags.registerBase(cobraCmd)

	return cobraCmd
}

func (c *CompileCommand) run(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	logger := newConsoleLogger(cfg)
	logger.InfoContext(cmd.Context(), "running build without capture", "prog", args[0])

	build := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
	build.Stdin = cmd.InOrStdin()
	build.Stdout = cmd.OutOrStdout()
	build.Stderr = cmd.ErrOrStderr()

	runErr := build.Run()
	if runErr != nil {
		return fmt.Errorf("compile %s: %w", args[0], runErr)
	}

	return nil
}
