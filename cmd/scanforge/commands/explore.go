package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// ExploreCommand holds the flags for the explore command.
type ExploreCommand struct {
	flags  pipelineFlags
	format string
}

// NewExploreCommand creates and configures the explore command.
func NewExploreCommand() *cobra.Command {
	cmd := &ExploreCommand{}

	cobraCmd := &cobra.Command{
		Use:   "explore [flags]",
		Short: "Browse the capture store",
		Long: `Explore lists the source files, targets, and finding counts the capture
store holds, as a table or as YAML for piping into other tooling.`,
		Args: cobra.NoArgs,
		RunE: cmd.run,
	}

	cmd.flags.registerBase(cobraCmd)
	cobraCmd.Flags().StringVarP(&cmd.format, "format", "f", "table", "Output format: table or yaml")

	return cobraCmd
}

func (c *ExploreCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	store, openErr := openExistingStore(results.Dir(cfg.ResultsDir))
	if openErr != nil {
		return openErr
	}
	defer store.Close()

	switch c.format {
	case "table":
		return report.Explore(cmd.Context(), store, cmd.OutOrStdout())
	case "yaml":
		return report.ExportYAML(cmd.Context(), store, cmd.OutOrStdout())
	default:
		return fmt.Errorf("unknown explore format %q", c.format)
	}
}
