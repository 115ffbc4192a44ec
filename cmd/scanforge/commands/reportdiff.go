package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// ReportDiffCommand holds the flags for the report-diff command.
type ReportDiffCommand struct {
	flags    pipelineFlags
	previous string
	current  string
}

// NewReportDiffCommand creates and configures the report-diff command.
func NewReportDiffCommand() *cobra.Command {
	cmd := &ReportDiffCommand{}

	cobraCmd := &cobra.Command{
		Use:   "report-diff [flags]",
		Short: "Classify findings against a previous report",
		Long: `Report-diff splits the current findings into introduced, fixed, and
preexisting against a previous findings report and writes the three
classifications under the results directory.`,
		Args: cobra.NoArgs,
		RunE: cmd.run,
	}

	cmd.flags.registerBase(cobraCmd)

	fl := cobraCmd.Flags()
	fl.StringVar(&cmd.previous, "report-previous", "", "Findings report of the previous run")
	fl.StringVar(&cmd.current, "report-current", "", "Findings report of the current run")

	_ = cobraCmd.MarkFlagRequired("report-previous")
	_ = cobraCmd.MarkFlagRequired("report-current")

	return cobraCmd
}

func (c *ReportDiffCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	dir := results.Dir(cfg.ResultsDir)

	createErr := dir.Create()
	if createErr != nil {
		return fmt.Errorf("create results directory: %w", createErr)
	}

	diff, diffErr := report.DiffReports(c.previous, c.current)
	if diffErr != nil {
		return diffErr
	}

	writeErr := report.WriteDifferential(dir, diff)
	if writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "introduced %d, fixed %d, preexisting %d\n",
		len(diff.Introduced), len(diff.Fixed), len(diff.Preexisting))

	return nil
}
