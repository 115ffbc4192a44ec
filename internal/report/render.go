package report

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
)

// severityColors maps finding severities to their console color.
var severityColors = map[string]*color.Color{
	capturedb.SeverityError:   color.New(color.FgRed, color.Bold),
	capturedb.SeverityWarning: color.New(color.FgYellow),
	capturedb.SeverityInfo:    color.New(color.FgCyan),
}

// RenderText renders the findings report. The full table is written to
// txtPath; up to limit findings echo to the console with severity coloring.
// A negative limit echoes everything, quiet suppresses the echo entirely.
func RenderText(jsonPath, txtPath string, limit int, quiet bool, console io.Writer) error {
	rep, err := ReadFindings(jsonPath)
	if err != nil {
		return err
	}

	text := renderFindingsTable(rep.Findings)
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	if quiet || console == nil {
		return nil
	}

	echoFindings(console, rep.Findings, limit, txtPath)

	return nil
}

func renderFindingsTable(findings []capturedb.Finding) string {
	if len(findings) == 0 {
		return "No findings.\n"
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"SEVERITY", "CHECKER", "LOCATION", "MESSAGE"})

	for _, f := range findings {
		tbl.AppendRow(table.Row{f.Severity, f.Checker, location(f), f.Message})
	}

	tbl.AppendFooter(table.Row{"", "", "", countIssues(len(findings))})

	return tbl.Render() + "\n"
}

func location(f capturedb.Finding) string {
	loc := fmt.Sprintf("%s:%d", f.File, f.Line)
	if f.Procedure != "" {
		loc += " (" + f.Procedure + ")"
	}

	return loc
}

func echoFindings(console io.Writer, findings []capturedb.Finding, limit int, txtPath string) {
	shown := len(findings)
	if limit >= 0 && shown > limit {
		shown = limit
	}

	for _, f := range findings[:shown] {
		label := f.Severity
		if c, ok := severityColors[f.Severity]; ok {
			label = c.Sprint(f.Severity)
		}

		fmt.Fprintf(console, "%s  %s  %s\n    %s\n", label, f.Checker, location(f), f.Message)
	}

	if hidden := len(findings) - shown; hidden > 0 {
		fmt.Fprintf(console, "... %s more in %s\n", humanize.Comma(int64(hidden)), txtPath)
	}

	fmt.Fprintf(console, "\nFound %s\n", countIssues(len(findings)))
}

func countIssues(n int) string {
	if n == 1 {
		return "1 issue"
	}

	return humanize.Comma(int64(n)) + " issues"
}
