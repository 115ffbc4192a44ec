package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/driver"
)

// RunCommand holds the flags for the run command.
type RunCommand struct {
	flags pipelineFlags
	build pipelineBuilder
}

// NewRunCommand creates and configures the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(newPipeline)
}

// newRunCommandWithDeps injects the pipeline builder for tests.
func newRunCommandWithDeps(build pipelineBuilder) *cobra.Command {
	cmd := &RunCommand{build: build}

	cobraCmd := &cobra.Command{
		Use:   "run [flags] -- <build command>",
		Short: "Capture a build, analyze it, and report findings",
		Long: `Run is the whole pipeline in one invocation: capture the build, merge
sub-captures when a distributed build left any behind, analyze the captured
sources, and write the findings and cost reports. An empty build command
re-analyzes configured compilation databases, or whatever the results
directory already holds.`,
		Args: cobra.ArbitraryArgs,
		RunE: cmd.run,
	}

	cmd.flags.register(cobraCmd)

	return cobraCmd
}

func (c *RunCommand) run(cmd *cobra.Command, args []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	p, buildErr := c.build(cfg, cmd.OutOrStdout())
	if buildErr != nil {
		return buildErr
	}
	defer p.close()

	m, modeErr := p.resolveMode(args)
	if modeErr != nil {
		return modeErr
	}

	return p.runPipeline(cmd.Context(), m, driver.CommandRun)
}
