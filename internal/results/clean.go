package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dirsAlwaysDeleted are subtrees whose contents never survive a clean: they
// hold scratch state and non-deterministic run statistics.
var dirsAlwaysDeleted = map[string]bool{
	TmpDirName:       true,
	StatsDirName:     true,
	MulticoreDirName: true,
}

// dirsDeletedInCacheMode are additionally removed when the results are
// destined for an external build cache. Attributes are needed for local
// re-analysis but differ between machines.
var dirsDeletedInCacheMode = map[string]bool{
	AttributesDirName: true,
}

// suffixesDeleted matches free-text and structured text outputs.
var suffixesDeleted = []string{".txt", ".csv", ".json"}

// neverDeleted are the canonical outputs a clean must preserve regardless of
// any other rule.
var neverDeleted = map[string]bool{
	ReportFile:           true,
	CostsReportFile:      true,
	ChangedFunctionsFile: true,
}

// Canonicalize rewrites the capture store into a deterministic form. Clean
// invokes it before deleting anything when the run is in cache-capture mode.
type Canonicalize func() error

// Clean prunes the results directory so repeated runs stay idempotent and a
// cache-destined directory is deterministic and minimal.
//
// The capture store must already be closed: the walk deletes the store's WAL
// and SHM side files, which must not vanish under an open connection. In
// cache-capture mode the canonicalize pass runs first (it reopens the store
// itself), the store file is kept as the cached artifact, and the
// per-translation-unit attribute metadata is dropped; outside cache mode the
// store file itself is deleted too. The findings report, the cost report,
// and the changed-functions export always survive.
//
// Entries that vanish mid-walk were cleaned by someone else and are not an
// error, so running Clean twice is a no-op the second time.
func Clean(dir Dir, cacheCapture bool, canonicalize Canonicalize) error {
	if cacheCapture && canonicalize != nil {
		if err := canonicalize(); err != nil {
			return fmt.Errorf("canonicalize store before clean: %w", err)
		}
	}

	return cleanDir(string(dir), cacheCapture)
}

func cleanDir(dir string, cacheCapture bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, statErr := os.Lstat(path)
		if os.IsNotExist(statErr) {
			continue
		}

		if statErr != nil {
			return fmt.Errorf("inspect %s: %w", path, statErr)
		}

		switch {
		case info.IsDir():
			if err := cleanSubdir(path, entry.Name(), cacheCapture); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if shouldDeleteFile(entry.Name(), cacheCapture) {
				if err := remove(path); err != nil {
					return err
				}
			}
		default:
			// Sockets, symlinks, or entries replaced by a concurrent
			// deleter. Leave them alone.
		}
	}

	return nil
}

// remove deletes a single file, tolerating entries that vanished since the
// directory was read.
func remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	return nil
}

func cleanSubdir(path, name string, cacheCapture bool) error {
	if dirsAlwaysDeleted[name] || (cacheCapture && dirsDeletedInCacheMode[name]) {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}

		return nil
	}

	return cleanDir(path, cacheCapture)
}

func shouldDeleteFile(name string, cacheCapture bool) bool {
	if neverDeleted[name] {
		return false
	}

	switch name {
	case LogFile, StoreWAL, StoreSHM:
		return true
	case StoreFile:
		// In cache mode the canonicalized store is the artifact being
		// cached; everywhere else it is stale the moment the run ends.
		return !cacheCapture
	}

	for _, suffix := range suffixesDeleted {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
