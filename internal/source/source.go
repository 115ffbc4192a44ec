// Package source identifies source files and resolves changed-file scopes.
//
// A scope limits capture and analysis to a subset of the project. Scopes come
// from an explicit index file or from git history; a nil *Set means the run
// is unscoped and every captured file is in play.
package source

import (
	"path/filepath"
	"sort"
	"strings"
)

// FileID is a normalized source file path. Paths are cleaned and use forward
// slashes regardless of platform, so IDs from different providers compare
// equal.
type FileID string

// NewFileID normalizes a raw path into a FileID.
func NewFileID(path string) FileID {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	cleaned = strings.TrimPrefix(cleaned, "./")

	return FileID(cleaned)
}

// String returns the normalized path.
func (id FileID) String() string {
	return string(id)
}

// Set is a collection of changed files. A nil *Set means no scope was
// configured; callers treat that as "everything changed".
type Set struct {
	files map[FileID]struct{}
}

// NewSet builds a set from raw paths, normalizing each.
func NewSet(paths ...string) *Set {
	s := &Set{files: make(map[FileID]struct{}, len(paths))}

	for _, p := range paths {
		s.Add(NewFileID(p))
	}

	return s
}

// Add inserts a file into the set.
func (s *Set) Add(id FileID) {
	s.files[id] = struct{}{}
}

// Contains reports whether the file is in the set.
func (s *Set) Contains(id FileID) bool {
	_, ok := s.files[id]

	return ok
}

// ContainsPath normalizes the raw path and reports membership.
func (s *Set) ContainsPath(path string) bool {
	return s.Contains(NewFileID(path))
}

// Len returns the number of files in the set.
func (s *Set) Len() int {
	return len(s.files)
}

// Sorted returns the set contents in lexical order.
func (s *Set) Sorted() []FileID {
	ids := make([]FileID, 0, len(s.files))

	for id := range s.files {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
