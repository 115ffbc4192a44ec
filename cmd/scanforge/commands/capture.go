package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/driver"
)

// CaptureCommand holds the flags for the capture command.
type CaptureCommand struct {
	flags pipelineFlags
	build pipelineBuilder
}

// NewCaptureCommand creates and configures the capture command.
func NewCaptureCommand() *cobra.Command {
	return newCaptureCommandWithDeps(newPipeline)
}

// newCaptureCommandWithDeps injects the pipeline builder for tests.
func newCaptureCommandWithDeps(build pipelineBuilder) *cobra.Command {
	cmd := &CaptureCommand{build: build}

	cobraCmd := &cobra.Command{
		Use:   "capture [flags] -- <build command>",
		Short: "Capture a build into the results directory",
		Long: `Capture runs the build command under interception and records its
compilation steps into the capture store. No analysis runs; follow up with
"scanforge analyze" or use "scanforge run" for both.`,
		Args: cobra.ArbitraryArgs,
		RunE: cmd.run,
	}

	cmd.flags.register(cobraCmd)

	return cobraCmd
}

func (c *CaptureCommand) run(cmd *cobra.Command, args []string) error {
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

	return p.runPipeline(cmd.Context(), m, driver.CommandCapture)
}
