// Package runstate persists pipeline state that must survive across process
// invocations: distributed-build captures run in re-entrant children, and the
// later analyze invocation needs to know whether sub-captures are waiting to
// be merged.
package runstate

import (
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/scanforge/pkg/persist"
)

// FileBasename is the run-state file name without the codec extension.
const FileBasename = ".scanforge-runstate"

// SchemaVersion is the current run-state format version. State written by a
// different version is discarded rather than migrated.
const SchemaVersion = 1

// State is the persisted run-state record.
type State struct {
	// Version is the schema version of the writer.
	Version int `json:"version"`

	// RunID identifies the invocation that last wrote the state.
	RunID string `json:"run_id"`

	// MergePending is set by distributed captures and cleared after a
	// successful merge.
	MergePending bool `json:"merge_pending"`
}

// Store is the pipeline's view of the run state. Mutations persist before
// returning.
type Store interface {
	// MergePending reports whether sub-captures await merging.
	MergePending() bool

	// SetMergePending updates and persists the merge-pending flag.
	SetMergePending(pending bool) error
}

// FileStore persists State in the results directory as
// .scanforge-runstate.json.
type FileStore struct {
	dir       string
	state     State
	persister *persist.Persister[State]
}

// Open loads the run state from dir, or starts fresh when no state file
// exists. Unreadable or version-mismatched state is discarded with a warning:
// the run state is advisory and a stale file must not block the pipeline.
func Open(dir, runID string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		dir:       dir,
		state:     State{Version: SchemaVersion, RunID: runID},
		persister: persist.NewPersister[State](FileBasename, persist.NewJSONCodec()),
	}

	err := s.persister.Load(dir, func(loaded *State) {
		if loaded.Version != SchemaVersion {
			logger.Warn("discarding run state with unknown schema version",
				"found", loaded.Version, "supported", SchemaVersion)

			return
		}

		s.state.MergePending = loaded.MergePending
	})
	if err != nil {
		logger.Warn("discarding unreadable run state", "error", err)
	}

	return s
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.persister.Path(s.dir)
}

// MergePending implements Store.
func (s *FileStore) MergePending() bool {
	return s.state.MergePending
}

// SetMergePending implements Store. The new value is persisted before
// returning so a later invocation observes it.
func (s *FileStore) SetMergePending(pending bool) error {
	s.state.MergePending = pending

	err := s.persister.Save(s.dir, func() *State {
		snapshot := s.state

		return &snapshot
	})
	if err != nil {
		return fmt.Errorf("persist run state: %w", err)
	}

	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	pending bool

	// SetCalls counts SetMergePending invocations.
	SetCalls int

	// FailSet, when non-nil, is returned by SetMergePending.
	FailSet error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// MergePending implements Store.
func (m *MemoryStore) MergePending() bool {
	return m.pending
}

// SetMergePending implements Store.
func (m *MemoryStore) SetMergePending(pending bool) error {
	m.SetCalls++

	if m.FailSet != nil {
		return m.FailSet
	}

	m.pending = pending

	return nil
}
