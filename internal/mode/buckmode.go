package mode

import "strconv"

// BuckStrategy selects how a Buck build is captured.
type BuckStrategy int

const (
	// BuckClangFlavors captures via Buck compiler flavors.
	BuckClangFlavors BuckStrategy = iota + 1
	// BuckClangCompilationDatabase captures via a Buck-generated
	// compilation database.
	BuckClangCompilationDatabase
	// BuckCombinedGenrule drives a combined clang+java genrule master
	// build.
	BuckCombinedGenrule
	// BuckJavaGenruleMaster drives a Java genrule master build.
	BuckJavaGenruleMaster
)

// String returns the strategy name as accepted on the command line.
func (s BuckStrategy) String() string {
	switch s {
	case BuckClangFlavors:
		return "clang-flavors"
	case BuckClangCompilationDatabase:
		return "clang-compilation-db"
	case BuckCombinedGenrule:
		return "combined-genrule"
	case BuckJavaGenruleMaster:
		return "java-genrule-master"
	default:
		return "unknown"
	}
}

// ParseBuckStrategy maps a flag value to a BuckStrategy.
func ParseBuckStrategy(name string) (BuckStrategy, bool) {
	switch name {
	case "clang-flavors", "flavors":
		return BuckClangFlavors, true
	case "clang-compilation-db", "compilation-db", "cdb":
		return BuckClangCompilationDatabase, true
	case "combined-genrule", "combined":
		return BuckCombinedGenrule, true
	case "java-genrule-master", "java":
		return BuckJavaGenruleMaster, true
	default:
		return 0, false
	}
}

// BuckMode is the Buck capture sub-mode: a strategy plus, for the
// compilation-database strategy, the dependency expansion policy.
type BuckMode struct {
	Strategy BuckStrategy
	Deps     CompilationDatabaseDeps
}

// IsCompilationDatabase reports whether the sub-mode captures through a
// compilation database.
func (m BuckMode) IsCompilationDatabase() bool {
	return m.Strategy == BuckClangCompilationDatabase
}

// depsKind discriminates CompilationDatabaseDeps.
type depsKind int

const (
	depsNone depsKind = iota
	depsAll
	depsUpTo
)

// CompilationDatabaseDeps controls how far Buck expands dependency targets
// when generating a compilation database. The zero value is NoDeps.
type CompilationDatabaseDeps struct {
	kind  depsKind
	depth int
}

// NoDeps expands no dependency targets.
func NoDeps() CompilationDatabaseDeps {
	return CompilationDatabaseDeps{kind: depsNone}
}

// AllDeps expands dependency targets at every depth.
func AllDeps() CompilationDatabaseDeps {
	return CompilationDatabaseDeps{kind: depsAll}
}

// DepsUpToDepth expands dependency targets down to the given depth.
func DepsUpToDepth(depth int) CompilationDatabaseDeps {
	return CompilationDatabaseDeps{kind: depsUpTo, depth: depth}
}

// All reports whether every dependency depth is expanded.
func (d CompilationDatabaseDeps) All() bool {
	return d.kind == depsAll
}

// Depth returns the expansion depth limit and whether one is set.
func (d CompilationDatabaseDeps) Depth() (int, bool) {
	if d.kind == depsUpTo {
		return d.depth, true
	}

	return 0, false
}

// String returns a stable representation for logs.
func (d CompilationDatabaseDeps) String() string {
	switch d.kind {
	case depsAll:
		return "all-deps"
	case depsUpTo:
		return "deps-up-to-" + strconv.Itoa(d.depth)
	default:
		return "no-deps"
	}
}
