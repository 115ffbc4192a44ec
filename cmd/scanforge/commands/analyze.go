package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/driver"
	"github.com/Sumatoshi-tech/scanforge/internal/mode"
)

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	flags pipelineFlags
	build pipelineBuilder
}

// NewAnalyzeCommand creates and configures the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return newAnalyzeCommandWithDeps(newPipeline)
}

// newAnalyzeCommandWithDeps injects the pipeline builder for tests.
func newAnalyzeCommandWithDeps(build pipelineBuilder) *cobra.Command {
	cmd := &AnalyzeCommand{build: build}

	cobraCmd := &cobra.Command{
		Use:   "analyze [flags]",
		Short: "Analyze an existing capture",
		Long: `Analyze runs the analysis engine over the capture store a previous
capture left in the results directory, merging pending sub-captures first,
then writes the reports.`,
		Args: cobra.NoArgs,
		RunE: cmd.run,
	}

	cmd.flags.register(cobraCmd)

	return cobraCmd
}

func (c *AnalyzeCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	p, buildErr := c.build(cfg, cmd.OutOrStdout())
	if buildErr != nil {
		return buildErr
	}
	defer p.close()

	return p.runPipeline(cmd.Context(), mode.Analyze{}, driver.CommandAnalyze)
}
