package capturedb

import (
	"context"
	"fmt"
)

// canonicalRewrite rebuilds every table with rows inserted in unique-key
// order and capture timestamps zeroed, so row ids stop depending on the
// fan-out order of the capture that produced them.
const canonicalRewrite = `
CREATE TABLE canonical_source_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	language TEXT NOT NULL,
	captured_at INTEGER NOT NULL
);
INSERT INTO canonical_source_files (path, language, captured_at)
	SELECT path, language, 0 FROM source_files ORDER BY path;
DROP TABLE source_files;
ALTER TABLE canonical_source_files RENAME TO source_files;
CREATE INDEX idx_source_files_language ON source_files(language);

CREATE TABLE canonical_targets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	UNIQUE(name, kind)
);
INSERT INTO canonical_targets (name, kind)
	SELECT name, kind FROM targets ORDER BY name, kind;
DROP TABLE targets;
ALTER TABLE canonical_targets RENAME TO targets;

CREATE TABLE canonical_findings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	checker TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	procedure TEXT NOT NULL DEFAULT '',
	UNIQUE(checker, file, line, procedure, message)
);
INSERT INTO canonical_findings (checker, severity, message, file, line, procedure)
	SELECT checker, severity, message, file, line, procedure
	FROM findings ORDER BY file, line, checker, procedure, message;
DROP TABLE findings;
ALTER TABLE canonical_findings RENAME TO findings;
CREATE INDEX idx_findings_file ON findings(file);

CREATE TABLE canonical_costs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	procedure TEXT NOT NULL,
	file TEXT NOT NULL,
	metric TEXT NOT NULL,
	value REAL NOT NULL,
	UNIQUE(procedure, file, metric)
);
INSERT INTO canonical_costs (procedure, file, metric, value)
	SELECT procedure, file, metric, value FROM costs ORDER BY procedure, file, metric;
DROP TABLE costs;
ALTER TABLE canonical_costs RENAME TO costs;
`

// Canonicalize rewrites the store into a stable, machine-independent form
// for external build caches: timestamps zeroed, rows in unique-key order,
// WAL folded back into the main file so no side files remain.
func (s *Store) Canonicalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := []string{
		canonicalRewrite,
		"PRAGMA wal_checkpoint(TRUNCATE)",
		"PRAGMA journal_mode = DELETE",
		"VACUUM",
	}
	for _, step := range steps {
		if _, err := s.db.ExecContext(ctx, step); err != nil {
			return fmt.Errorf("canonicalize store: %w", err)
		}
	}

	return nil
}
