package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// genruleTargetKind labels targets recorded by genrule captures.
const genruleTargetKind = "genrule"

// ChangedFunction is one entry of a changed-functions export. Genrule
// captures record file granularity; analysis engines fill in procedures.
type ChangedFunction struct {
	File      string `json:"file"`
	Procedure string `json:"procedure,omitempty"`
}

// GenruleCapture is the genrule-compatibility capture: a build rule hands
// over a directory of generated sources and classes, and the capture records
// them into a fresh sub-capture for a later merge.
type GenruleCapture struct {
	Logger  *slog.Logger
	Metrics *observability.PhaseMetrics
	Dir     results.Dir

	// ExportChangedFunctions writes a changed-functions fragment next to
	// the sub-capture for the merge step to fold in.
	ExportChangedFunctions bool
}

// Capture walks the generated-classes tree and records its compilation units
// into a new sub-capture store.
func (g *GenruleCapture) Capture(ctx context.Context, generatedClasses string) error {
	sources, err := collectGeneratedSources(generatedClasses)
	if err != nil {
		return errors.Join(ErrCaptureBackend, err)
	}

	captureID := uuid.NewString()

	store, err := capturedb.Open(g.Dir.SubCaptureStore(captureID))
	if err != nil {
		return errors.Join(ErrCaptureBackend, fmt.Errorf("open sub-capture: %w", err))
	}
	defer store.Close()

	if err := store.AddTarget(ctx, generatedClasses, genruleTargetKind); err != nil {
		return errors.Join(ErrCaptureBackend, err)
	}

	for _, src := range sources {
		language := detectLanguage(src)

		if err := store.AddSourceFile(ctx, src, language); err != nil {
			return errors.Join(ErrCaptureBackend, err)
		}

		g.Metrics.AddCapturedFiles(ctx, 1, language)
	}

	g.Logger.Info("captured genrule output",
		slog.String("generated_classes", generatedClasses),
		slog.String("capture_id", captureID),
		slog.Int("sources", len(sources)),
	)

	if !g.ExportChangedFunctions {
		return nil
	}

	err = writeChangedFunctionsFragment(g.Dir.SubCaptureDir(captureID), sources)
	if err != nil {
		return errors.Join(ErrCaptureBackend, err)
	}

	return nil
}

// collectGeneratedSources lists the Java compilation units under a
// generated-classes tree in walk order.
func collectGeneratedSources(root string) ([]string, error) {
	var sources []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if strings.HasSuffix(strings.ToLower(path), ".java") {
			sources = append(sources, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk generated classes %s: %w", root, err)
	}

	return sources, nil
}

func writeChangedFunctionsFragment(captureDir string, sources []string) error {
	entries := make([]ChangedFunction, 0, len(sources))

	for _, src := range sources {
		entries = append(entries, ChangedFunction{File: source.NewFileID(src).String()})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode changed-functions fragment: %w", err)
	}

	path := filepath.Join(captureDir, results.ChangedFunctionsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write changed-functions fragment: %w", err)
	}

	return nil
}

// MergeChangedFunctions folds the per-capture changed-functions fragments
// into the results-level export, deduplicating entries. Runs with no
// fragments leave any existing export untouched.
func MergeChangedFunctions(dir results.Dir) error {
	entries, err := os.ReadDir(dir.CapturesDir())
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("list sub-captures: %w", err)
	}

	var (
		merged []ChangedFunction
		seen   = make(map[ChangedFunction]struct{})
		found  bool
	)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		fragment := filepath.Join(dir.SubCaptureDir(entry.Name()), results.ChangedFunctionsFile)

		fragmentEntries, ok, err := readFragment(fragment)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		found = true

		for _, fn := range fragmentEntries {
			if _, dup := seen[fn]; dup {
				continue
			}

			seen[fn] = struct{}{}
			merged = append(merged, fn)
		}
	}

	if !found {
		return nil
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encode changed-functions export: %w", err)
	}

	if err := os.WriteFile(dir.ChangedFunctions(), data, 0o644); err != nil {
		return fmt.Errorf("write changed-functions export: %w", err)
	}

	return nil
}

func readFragment(path string) ([]ChangedFunction, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("read changed-functions fragment: %w", err)
	}

	var entries []ChangedFunction

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("parse changed-functions fragment %s: %w", path, err)
	}

	return entries, true, nil
}
