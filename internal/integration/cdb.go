package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/src-d/enry/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/observability"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// languageOther labels files enry cannot classify.
const languageOther = "Other"

// CompileCommand is one entry of a JSON compilation database. Either Command
// (a shell line) or Arguments (an explicit vector) carries the invocation.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Argv returns the entry's argument vector, splitting the shell form when no
// explicit vector is present.
func (c CompileCommand) Argv() []string {
	if len(c.Arguments) > 0 {
		return c.Arguments
	}

	return splitCommand(c.Command)
}

// SourcePath resolves the entry's file against its build directory.
func (c CompileCommand) SourcePath() string {
	if filepath.IsAbs(c.File) {
		return filepath.Clean(c.File)
	}

	return filepath.Join(c.Directory, c.File)
}

// LoadCompilationDatabase parses one database file. With escaped set, percent
// escapes in the directory and file fields are decoded first.
func LoadCompilationDatabase(dbPath string, escaped bool) ([]CompileCommand, error) {
	data, err := os.ReadFile(dbPath)
	if err != nil {
		return nil, fmt.Errorf("read compilation database: %w", err)
	}

	var entries []CompileCommand

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse compilation database %s: %w", dbPath, err)
	}

	if !escaped {
		return entries, nil
	}

	for i := range entries {
		entries[i].Directory = unescapePercent(entries[i].Directory)
		entries[i].File = unescapePercent(entries[i].File)
	}

	return entries, nil
}

// CDBCapture ingests pre-built compilation databases into the capture store,
// one argv artifact and one source-file row per translation unit.
type CDBCapture struct {
	Store   *capturedb.Store
	Logger  *slog.Logger
	Metrics *observability.PhaseMetrics
	Dir     results.Dir

	// Changed scopes the capture; nil captures every entry.
	Changed *source.Set
}

// Capture loads every database and fans the translation units out across
// CPU-bound workers.
func (c *CDBCapture) Capture(ctx context.Context, plain, escaped []string) error {
	entries, err := c.loadAll(plain, escaped)
	if err != nil {
		return err
	}

	kept := c.filterChanged(entries)

	c.Logger.Info("capturing compilation database entries",
		slog.Int("total", len(entries)),
		slog.Int("in_scope", len(kept)),
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.NumCPU())

	for _, entry := range kept {
		grp.Go(func() error {
			return c.captureEntry(grpCtx, entry)
		})
	}

	return grp.Wait()
}

func (c *CDBCapture) loadAll(plain, escaped []string) ([]CompileCommand, error) {
	var entries []CompileCommand

	for _, dbPath := range plain {
		loaded, err := LoadCompilationDatabase(dbPath, false)
		if err != nil {
			return nil, err
		}

		entries = append(entries, loaded...)
	}

	for _, dbPath := range escaped {
		loaded, err := LoadCompilationDatabase(dbPath, true)
		if err != nil {
			return nil, err
		}

		entries = append(entries, loaded...)
	}

	return dedupeEntries(entries), nil
}

// dedupeEntries keeps the first entry per resolved source path. Databases
// from overlapping targets list shared headers' units more than once.
func dedupeEntries(entries []CompileCommand) []CompileCommand {
	seen := make(map[string]struct{}, len(entries))
	kept := entries[:0]

	for _, entry := range entries {
		key := entry.SourcePath()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		kept = append(kept, entry)
	}

	return kept
}

func (c *CDBCapture) filterChanged(entries []CompileCommand) []CompileCommand {
	if c.Changed == nil {
		return entries
	}

	kept := make([]CompileCommand, 0, len(entries))

	for _, entry := range entries {
		if c.Changed.ContainsPath(entry.File) || c.Changed.ContainsPath(entry.SourcePath()) {
			kept = append(kept, entry)
		}
	}

	return kept
}

func (c *CDBCapture) captureEntry(ctx context.Context, entry CompileCommand) error {
	sourcePath := entry.SourcePath()
	language := detectLanguage(sourcePath)

	_, err := WriteArgvArtifact(c.Dir.TUDir(), sourcePath, entry.Argv())
	if err != nil {
		return fmt.Errorf("capture %s: %w", sourcePath, err)
	}

	if err := c.Store.AddSourceFile(ctx, sourcePath, language); err != nil {
		return fmt.Errorf("capture %s: %w", sourcePath, err)
	}

	c.Metrics.AddCapturedFiles(ctx, 1, language)

	c.Logger.Debug("captured translation unit",
		slog.String("file", sourcePath),
		slog.String("language", language),
	)

	return nil
}

// detectLanguage classifies a source file by name, falling back to content
// when the name alone is ambiguous.
func detectLanguage(sourcePath string) string {
	lang := enry.GetLanguage(path.Base(filepath.ToSlash(sourcePath)), nil)
	if lang == "" {
		if contents, err := os.ReadFile(sourcePath); err == nil && len(contents) > 0 {
			lang = enry.GetLanguage(path.Base(filepath.ToSlash(sourcePath)), contents)
		}
	}

	if lang == "" {
		return languageOther
	}

	return lang
}

// splitCommand splits a shell command line into an argument vector, honoring
// single quotes, double quotes, and backslash escapes.
func splitCommand(command string) []string {
	var (
		args    []string
		current strings.Builder
		quote   byte
		escaped bool
		pending bool
	)

	for i := 0; i < len(command); i++ {
		ch := command[i]

		switch {
		case escaped:
			current.WriteByte(ch)
			escaped = false
			pending = true

		case ch == '\\' && quote != '\'':
			escaped = true
			pending = true

		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteByte(ch)
			}

		case ch == '\'' || ch == '"':
			quote = ch
			pending = true

		case ch == ' ' || ch == '\t':
			if pending {
				args = append(args, current.String())
				current.Reset()

				pending = false
			}

		default:
			current.WriteByte(ch)
			pending = true
		}
	}

	if pending {
		args = append(args, current.String())
	}

	return args
}

// unescapePercent decodes %XX hex escapes. Malformed escapes pass through
// unchanged.
func unescapePercent(escapedPath string) string {
	if !strings.ContainsRune(escapedPath, '%') {
		return escapedPath
	}

	var out strings.Builder
	out.Grow(len(escapedPath))

	for i := 0; i < len(escapedPath); i++ {
		ch := escapedPath[i]

		if ch == '%' && i+2 < len(escapedPath) {
			hi, okHi := hexDigit(escapedPath[i+1])
			lo, okLo := hexDigit(escapedPath[i+2])

			if okHi && okLo {
				out.WriteByte(hi<<4 | lo)
				i += 2

				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func hexDigit(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	default:
		return 0, false
	}
}
