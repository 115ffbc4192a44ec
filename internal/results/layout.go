// Package results defines the layout of a results directory and the cleanup
// policy that keeps repeated runs idempotent and cache-safe.
//
// Everything the pipeline persists lives under one directory: the capture
// store, per-invocation sub-captures, per-translation-unit artifacts, the
// findings and cost reports, and logs. Paths are only ever constructed
// through Dir so the cleaner and the phases agree on names.
package results

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known entry names inside a results directory.
const (
	// StoreFile is the canonical capture store.
	StoreFile = "capture.db"
	// StoreWAL is the store's write-ahead log side file.
	StoreWAL = "capture.db-wal"
	// StoreSHM is the store's shared-memory side file.
	StoreSHM = "capture.db-shm"

	// CapturesDirName holds per-sub-invocation captures awaiting merge.
	CapturesDirName = "captures"
	// TUDirName holds per-translation-unit argv artifacts.
	TUDirName = "tu"
	// TmpDirName is scratch space.
	TmpDirName = "tmp"
	// AttributesDirName holds per-translation-unit intermediate metadata.
	AttributesDirName = "attributes"
	// StatsDirName holds non-deterministic run statistics.
	StatsDirName = "stats"
	// MulticoreDirName holds per-worker scheduling state.
	MulticoreDirName = "multicore"
	// DifferentialDirName holds report-diff output.
	DifferentialDirName = "differential"

	// ReportFile is the canonical findings report.
	ReportFile = "report.json"
	// CostsReportFile is the cost report.
	CostsReportFile = "costs-report.json"
	// ChangedFunctionsFile is the merged changed-functions export.
	ChangedFunctionsFile = "changed-functions.json"
	// ReportTextFile is the rendered text report.
	ReportTextFile = "report.txt"
	// LogFile is the pipeline log.
	LogFile = "scanforge.log"
)

// Dir is a results directory root.
type Dir string

// Path returns the directory itself.
func (d Dir) Path() string { return string(d) }

// Store returns the canonical capture store path.
func (d Dir) Store() string { return filepath.Join(string(d), StoreFile) }

// CapturesDir returns the sub-captures directory.
func (d Dir) CapturesDir() string { return filepath.Join(string(d), CapturesDirName) }

// SubCaptureDir returns the directory for one sub-invocation's capture.
func (d Dir) SubCaptureDir(id string) string {
	return filepath.Join(string(d), CapturesDirName, id)
}

// SubCaptureStore returns the capture store of one sub-invocation.
func (d Dir) SubCaptureStore(id string) string {
	return filepath.Join(d.SubCaptureDir(id), StoreFile)
}

// SubCaptureStores lists the capture stores of all pending sub-invocations,
// in lexical order. A missing captures directory yields an empty list.
func (d Dir) SubCaptureStores() ([]string, error) {
	entries, err := os.ReadDir(d.CapturesDir())
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list sub-captures: %w", err)
	}

	var stores []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		store := d.SubCaptureStore(entry.Name())
		if _, statErr := os.Stat(store); statErr == nil {
			stores = append(stores, store)
		}
	}

	return stores, nil
}

// TUDir returns the translation-unit artifacts directory.
func (d Dir) TUDir() string { return filepath.Join(string(d), TUDirName) }

// TmpDir returns the scratch directory.
func (d Dir) TmpDir() string { return filepath.Join(string(d), TmpDirName) }

// DifferentialDir returns the report-diff output directory.
func (d Dir) DifferentialDir() string { return filepath.Join(string(d), DifferentialDirName) }

// Report returns the findings report path.
func (d Dir) Report() string { return filepath.Join(string(d), ReportFile) }

// CostsReport returns the cost report path.
func (d Dir) CostsReport() string { return filepath.Join(string(d), CostsReportFile) }

// ChangedFunctions returns the merged changed-functions export path.
func (d Dir) ChangedFunctions() string { return filepath.Join(string(d), ChangedFunctionsFile) }

// ReportText returns the rendered text report path.
func (d Dir) ReportText() string { return filepath.Join(string(d), ReportTextFile) }

// Log returns the pipeline log path.
func (d Dir) Log() string { return filepath.Join(string(d), LogFile) }

// Create materializes the directory and the subdirectories capture writes
// into. Creating an already-populated results directory is a no-op.
func (d Dir) Create() error {
	for _, dir := range []string{
		string(d),
		d.CapturesDir(),
		d.TUDir(),
		d.TmpDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results directory: %w", err)
		}
	}

	return nil
}
