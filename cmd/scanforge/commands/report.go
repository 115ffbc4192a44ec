package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/report"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// ReportCommand holds the flags for the report command.
type ReportCommand struct {
	flags pipelineFlags
}

// NewReportCommand creates and configures the report command.
func NewReportCommand() *cobra.Command {
	cmd := &ReportCommand{}

	cobraCmd := &cobra.Command{
		Use:   "report [flags]",
		Short: "Re-render reports from an existing capture",
		Long: `Report rewrites the findings and cost reports from the analysis rows in
the capture store and echoes the findings summary to the console.`,
		Args: cobra.NoArgs,
		RunE: cmd.run,
	}

	cmd.flags.registerBase(cobraCmd)

	return cobraCmd
}

func (c *ReportCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := c.flags.loadConfig(cmd.Flags())
	if cfgErr != nil {
		return cfgErr
	}

	dir := results.Dir(cfg.ResultsDir)

	store, openErr := openExistingStore(dir)
	if openErr != nil {
		return openErr
	}
	defer store.Close()

	writer := &report.Writer{Store: store, Logger: newConsoleLogger(cfg), RunID: uuid.NewString()}

	writeErr := writer.WriteReports(cmd.Context(), dir.Report(), dir.CostsReport())
	if writeErr != nil {
		return writeErr
	}

	return report.RenderText(dir.Report(), dir.ReportText(),
		cfg.Analyzer.ReportConsoleLimit, cfg.Quiet, cmd.OutOrStdout())
}

// openExistingStore opens the capture store only when a previous run left
// one behind. Open would create the directory tree on a typo'd path and
// mask the mistake with an empty-store result.
func openExistingStore(dir results.Dir) (*capturedb.Store, error) {
	_, statErr := os.Stat(dir.Store())
	if statErr != nil {
		return nil, fmt.Errorf("no capture store under %s: %w", dir.Path(), statErr)
	}

	return capturedb.Open(dir.Store())
}
