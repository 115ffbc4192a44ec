package capturedb

import (
	"context"
	"database/sql"
	"fmt"
)

// copyStatements pull rows from an attached sub-capture into the canonical
// store. Unique keys make re-merging the same sub-capture a no-op.
var copyStatements = []string{
	`INSERT OR IGNORE INTO source_files (path, language, captured_at)
		SELECT path, language, captured_at FROM sub.source_files`,
	`INSERT OR IGNORE INTO targets (name, kind)
		SELECT name, kind FROM sub.targets`,
	`INSERT OR IGNORE INTO findings (checker, severity, message, file, line, procedure)
		SELECT checker, severity, message, file, line, procedure FROM sub.findings`,
	`INSERT OR IGNORE INTO costs (procedure, file, metric, value)
		SELECT procedure, file, metric, value FROM sub.costs`,
}

// MergeCaptures folds the sub-capture databases at the given paths into this
// store. Sub-captures must no longer have writers.
func (s *Store) MergeCaptures(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ATTACH binds to a single session, so the merge pins one connection.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire merge connection: %w", err)
	}
	defer conn.Close()

	for _, path := range paths {
		if err := mergeOne(ctx, conn, path); err != nil {
			return fmt.Errorf("merge sub-capture %s: %w", path, err)
		}
	}

	return nil
}

func mergeOne(ctx context.Context, conn *sql.Conn, path string) error {
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS sub", path); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	var copyErr error

	for _, stmt := range copyStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			copyErr = fmt.Errorf("copy rows: %w", err)

			break
		}
	}

	if _, err := conn.ExecContext(ctx, "DETACH DATABASE sub"); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("detach: %w", err)
	}

	return copyErr
}
