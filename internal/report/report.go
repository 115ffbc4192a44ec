// Package report turns capture-store rows into the findings and cost
// reports, renders the human-readable summary, and classifies a report
// against a previous run.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
)

// reportVersion identifies the report envelope format.
const reportVersion = 1

// FindingsReport is the canonical findings report envelope written to
// report.json.
type FindingsReport struct {
	Version     int                 `json:"version"`
	GeneratedAt time.Time           `json:"generated_at"`
	RunID       string              `json:"run_id,omitempty"`
	Findings    []capturedb.Finding `json:"findings"`
}

// CostsReport is the cost report envelope written to costs-report.json.
type CostsReport struct {
	Version     int              `json:"version"`
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id,omitempty"`
	Costs       []capturedb.Cost `json:"costs"`
}

// Writer reads analysis rows from the capture store and writes the two JSON
// reports.
type Writer struct {
	Store  *capturedb.Store
	Logger *slog.Logger
	RunID  string
}

// WriteReports writes the findings report and the cost report. Both are
// written even when empty so downstream consumers always find them.
func (w *Writer) WriteReports(ctx context.Context, issuesPath, costsPath string) error {
	findings, err := w.Store.Findings(ctx)
	if err != nil {
		return fmt.Errorf("read findings: %w", err)
	}

	if findings == nil {
		findings = []capturedb.Finding{}
	}

	now := time.Now().UTC()

	issues := FindingsReport{
		Version:     reportVersion,
		GeneratedAt: now,
		RunID:       w.RunID,
		Findings:    findings,
	}
	if err := writeJSON(issuesPath, issues); err != nil {
		return fmt.Errorf("write findings report: %w", err)
	}

	costs, err := w.Store.Costs(ctx)
	if err != nil {
		return fmt.Errorf("read costs: %w", err)
	}

	if costs == nil {
		costs = []capturedb.Cost{}
	}

	costReport := CostsReport{
		Version:     reportVersion,
		GeneratedAt: now,
		RunID:       w.RunID,
		Costs:       costs,
	}
	if err := writeJSON(costsPath, costReport); err != nil {
		return fmt.Errorf("write cost report: %w", err)
	}

	w.Logger.Info("reports written",
		"findings", len(findings),
		"costs", len(costs),
		"report", issuesPath)

	return nil
}

// ReadFindings loads and schema-validates a findings report. Reports can come
// from other machines or older runs, so the file is validated before use.
func ReadFindings(path string) (*FindingsReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read findings report: %w", err)
	}

	if err := ValidateFindings(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rep FindingsReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode findings report: %w", err)
	}

	return &rep, nil
}

// ReadCosts loads a cost report.
func ReadCosts(path string) (*CostsReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost report: %w", err)
	}

	var rep CostsReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode cost report: %w", err)
	}

	return &rep, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
