// Package capturedb is the relational store behind a results directory. It
// records the source files and build targets collected during capture, and
// the findings and cost rows produced by analysis. Distributed builds write
// per-invocation sub-capture databases that are merged into the canonical
// store before analysis.
package capturedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Severity levels attached to findings.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// SourceFile is one captured translation unit or source file.
type SourceFile struct {
	Path       string
	Language   string
	CapturedAt time.Time
}

// Target is a build target observed during capture.
type Target struct {
	Name string
	Kind string
}

// Finding is one analysis result row.
type Finding struct {
	Checker   string `json:"checker"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Procedure string `json:"procedure,omitempty"`
}

// Cost is one analysis cost row.
type Cost struct {
	Procedure string  `json:"procedure"`
	File      string  `json:"file"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
}

// Store wraps a SQLite capture database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if needed) the capture database at path. Parent
// directories are created for file-backed stores; ":memory:" is accepted for
// tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open capture database: %w", err)
	}

	// Captures fan out across goroutines but the store serializes writes;
	// a single pooled connection also keeps ATTACH bound to the session
	// that issues the merge statements.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.initialize(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize capture schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS source_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		language TEXT NOT NULL,
		captured_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		UNIQUE(name, kind)
	);
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		checker TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		procedure TEXT NOT NULL DEFAULT '',
		UNIQUE(checker, file, line, procedure, message)
	);
	CREATE TABLE IF NOT EXISTS costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		procedure TEXT NOT NULL,
		file TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		UNIQUE(procedure, file, metric)
	);
	CREATE INDEX IF NOT EXISTS idx_source_files_language ON source_files(language);
	CREATE INDEX IF NOT EXISTS idx_findings_file ON findings(file);
	`

	_, err := s.db.Exec(schema)

	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// AddSourceFile records one captured source file. Re-capturing the same path
// is a no-op.
func (s *Store) AddSourceFile(ctx context.Context, path, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO source_files (path, language, captured_at) VALUES (?, ?, ?)",
		path, language, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert source file: %w", err)
	}

	return nil
}

// AddTarget records one build target.
func (s *Store) AddTarget(ctx context.Context, name, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO targets (name, kind) VALUES (?, ?)",
		name, kind,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}

	return nil
}

// AddFinding records one analysis finding. Duplicate findings collapse.
func (s *Store) AddFinding(ctx context.Context, f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO findings (checker, severity, message, file, line, procedure) VALUES (?, ?, ?, ?, ?, ?)",
		f.Checker, f.Severity, f.Message, f.File, f.Line, f.Procedure,
	)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}

	return nil
}

// AddCost records one analysis cost row, replacing a previous value for the
// same procedure and metric.
func (s *Store) AddCost(ctx context.Context, c Cost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO costs (procedure, file, metric, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(procedure, file, metric) DO UPDATE SET value = excluded.value`,
		c.Procedure, c.File, c.Metric, c.Value,
	)
	if err != nil {
		return fmt.Errorf("insert cost: %w", err)
	}

	return nil
}

// ResetAnalysis clears findings and costs ahead of a fresh analysis pass.
// Captured source files and targets are kept.
func (s *Store) ResetAnalysis(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"findings", "costs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}

// SourceFiles returns all captured source files ordered by path.
func (s *Store) SourceFiles(ctx context.Context) ([]SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, language, captured_at FROM source_files ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("query source files: %w", err)
	}
	defer rows.Close()

	var files []SourceFile

	for rows.Next() {
		var (
			f    SourceFile
			unix int64
		)

		if err := rows.Scan(&f.Path, &f.Language, &unix); err != nil {
			return nil, fmt.Errorf("scan source file: %w", err)
		}

		f.CapturedAt = time.Unix(unix, 0)
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source files: %w", err)
	}

	return files, nil
}

// Targets returns all recorded build targets ordered by name.
func (s *Store) Targets(ctx context.Context) ([]Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, kind FROM targets ORDER BY name, kind",
	)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets []Target

	for rows.Next() {
		var t Target

		if err := rows.Scan(&t.Name, &t.Kind); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}

		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}

	return targets, nil
}

// Findings returns all findings ordered by file, line, then checker.
func (s *Store) Findings(ctx context.Context) ([]Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT checker, severity, message, file, line, procedure FROM findings ORDER BY file, line, checker",
	)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding

	for rows.Next() {
		var f Finding

		if err := rows.Scan(&f.Checker, &f.Severity, &f.Message, &f.File, &f.Line, &f.Procedure); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}

		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}

	return findings, nil
}

// Costs returns all cost rows ordered by procedure then metric.
func (s *Store) Costs(ctx context.Context) ([]Cost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT procedure, file, metric, value FROM costs ORDER BY procedure, metric",
	)
	if err != nil {
		return nil, fmt.Errorf("query costs: %w", err)
	}
	defer rows.Close()

	var costs []Cost

	for rows.Next() {
		var c Cost

		if err := rows.Scan(&c.Procedure, &c.File, &c.Metric, &c.Value); err != nil {
			return nil, fmt.Errorf("scan cost: %w", err)
		}

		costs = append(costs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate costs: %w", err)
	}

	return costs, nil
}

// IsEmpty reports whether the store holds no captured source files.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists bool

	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM source_files LIMIT 1)",
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("count source files: %w", err)
	}

	return !exists, nil
}

// Close releases the database connection. The store must be closed before
// any cleanup pass deletes files in the results directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}
