package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
)

// Explore prints what the capture store currently holds: captured source
// files, build targets, and the findings tally from the last analysis.
func Explore(ctx context.Context, store *capturedb.Store, console io.Writer) error {
	files, targets, findings, err := loadInventory(ctx, store)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Fprintln(console, "Capture store is empty.")

		return nil
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(console)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"SOURCE FILE", "LANGUAGE", "CAPTURED"})

	for _, f := range files {
		tbl.AppendRow(table.Row{f.Path, f.Language, humanize.Time(f.CapturedAt)})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%s files", humanize.Comma(int64(len(files))))})
	tbl.Render()

	if len(targets) > 0 {
		fmt.Fprintln(console)

		tt := table.NewWriter()
		tt.SetOutputMirror(console)
		tt.SetStyle(table.StyleLight)
		tt.AppendHeader(table.Row{"TARGET", "KIND"})

		for _, t := range targets {
			tt.AppendRow(table.Row{t.Name, t.Kind})
		}

		tt.Render()
	}

	fmt.Fprintf(console, "\nLast analysis: %s\n", countIssues(len(findings)))

	return nil
}

// inventory is the YAML export shape of the capture store contents.
type inventory struct {
	Files    []inventoryFile   `yaml:"files"`
	Targets  []inventoryTarget `yaml:"targets,omitempty"`
	Findings int               `yaml:"findings"`
}

type inventoryFile struct {
	Path     string    `yaml:"path"`
	Language string    `yaml:"language"`
	Captured time.Time `yaml:"captured"`
}

type inventoryTarget struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// ExportYAML writes the capture store contents as YAML, for piping into
// other tooling.
func ExportYAML(ctx context.Context, store *capturedb.Store, console io.Writer) error {
	files, targets, findings, err := loadInventory(ctx, store)
	if err != nil {
		return err
	}

	inv := inventory{
		Files:    make([]inventoryFile, 0, len(files)),
		Targets:  make([]inventoryTarget, 0, len(targets)),
		Findings: len(findings),
	}

	for _, f := range files {
		inv.Files = append(inv.Files, inventoryFile{
			Path:     f.Path,
			Language: f.Language,
			Captured: f.CapturedAt,
		})
	}

	for _, t := range targets {
		inv.Targets = append(inv.Targets, inventoryTarget{Name: t.Name, Kind: t.Kind})
	}

	enc := yaml.NewEncoder(console)

	if err := enc.Encode(inv); err != nil {
		return fmt.Errorf("encode store inventory: %w", err)
	}

	return enc.Close()
}

func loadInventory(
	ctx context.Context, store *capturedb.Store,
) ([]capturedb.SourceFile, []capturedb.Target, []capturedb.Finding, error) {
	files, err := store.SourceFiles(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read source files: %w", err)
	}

	targets, err := store.Targets(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read targets: %w", err)
	}

	findings, err := store.Findings(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read findings: %w", err)
	}

	return files, targets, findings, nil
}
