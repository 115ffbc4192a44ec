package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/source"
)

// Checker identifiers attached to findings by the builtin engine.
const (
	CheckerUnsafeCall         = "UNSAFE_CALL"
	CheckerResourceLeak       = "RESOURCE_LEAK"
	CheckerSwallowedException = "SWALLOWED_EXCEPTION"
	CheckerHardExit           = "HARD_EXIT"
	CheckerLockImbalance      = "LOCK_IMBALANCE"
)

// MetricLinesOfCode is the cost metric recorded per procedure.
const MetricLinesOfCode = "loc"

// cFamily and javaFamily hold the language names enry assigns to the two
// families the builtin checkers understand.
var (
	cFamily = map[string]bool{
		"C":             true,
		"C++":           true,
		"Objective-C":   true,
		"Objective-C++": true,
	}

	javaFamily = map[string]bool{
		"Java": true,
	}
)

// unsafeCalls maps C-family routines that write through a buffer without a
// bound to the replacement suggested in the finding message.
var unsafeCalls = map[string]string{
	"gets":     "fgets",
	"sprintf":  "snprintf",
	"strcat":   "strncat",
	"strcpy":   "strncpy",
	"vsprintf": "vsnprintf",
}

// resourcePairs maps C-family acquisition routines to the release call each
// acquisition must pair with inside the same translation unit.
var resourcePairs = map[string]string{
	"calloc": "free",
	"fopen":  "fclose",
	"malloc": "free",
}

// riskyJavaCalls maps Java idioms that hide failures to the finding template
// recorded for each call site.
var riskyJavaCalls = map[string]capturedb.Finding{
	"printStackTrace": {
		Checker:  CheckerSwallowedException,
		Severity: capturedb.SeverityInfo,
		Message:  "exception is printed and dropped, rethrow or log it",
	},
	"System.exit": {
		Checker:  CheckerHardExit,
		Severity: capturedb.SeverityWarning,
		Message:  "process exit from library code",
	},
}

// cLockPairs and javaLockPairs map lock acquisitions to the release each one
// must pair with somewhere in the program.
var (
	cLockPairs = map[string]string{
		"pthread_mutex_lock":    "pthread_mutex_unlock",
		"pthread_rwlock_rdlock": "pthread_rwlock_unlock",
		"pthread_rwlock_wrlock": "pthread_rwlock_unlock",
	}

	javaLockPairs = map[string]string{
		"lock":              "unlock",
		"lockInterruptibly": "unlock",
	}
)

// nonProcedureHeads are identifiers that precede a parenthesized clause
// without opening a procedure body.
var nonProcedureHeads = map[string]bool{
	"case":         true,
	"catch":        true,
	"do":           true,
	"else":         true,
	"for":          true,
	"if":           true,
	"new":          true,
	"return":       true,
	"sizeof":       true,
	"switch":       true,
	"synchronized": true,
	"try":          true,
	"while":        true,
}

// Builtin is the self-contained analysis engine. It runs line-oriented
// checkers over the captured source files and records findings and
// per-procedure cost rows in the capture store.
type Builtin struct {
	store   *capturedb.Store
	logger  *slog.Logger
	workers int
}

// NewBuiltin constructs the builtin engine over the given store.
func NewBuiltin(store *capturedb.Store, logger *slog.Logger) *Builtin {
	return &Builtin{
		store:   store,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// Analyze runs the per-file checkers over every captured source file,
// restricted to the changed set when one is configured.
func (b *Builtin) Analyze(ctx context.Context, changed *source.Set) error {
	files, err := b.store.SourceFiles(ctx)
	if err != nil {
		return fmt.Errorf("list captured files: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.workers)

	for _, file := range files {
		if changed != nil && !changed.ContainsPath(file.Path) {
			continue
		}

		group.Go(func() error {
			return b.analyzeFile(gctx, file)
		})
	}

	return group.Wait()
}

func (b *Builtin) analyzeFile(ctx context.Context, file capturedb.SourceFile) error {
	lines, ok := b.readSource(file.Path)
	if !ok {
		return nil
	}

	var findings []capturedb.Finding

	switch {
	case cFamily[file.Language]:
		findings = append(findings, unsafeCallFindings(file.Path, lines)...)
		findings = append(findings, resourceFindings(file.Path, lines)...)
	case javaFamily[file.Language]:
		findings = append(findings, riskyJavaFindings(file.Path, lines)...)
	default:
		b.logger.Debug("no checkers for language",
			"file", file.Path, "language", file.Language)

		return nil
	}

	for _, f := range findings {
		if err := b.store.AddFinding(ctx, f); err != nil {
			return fmt.Errorf("record finding: %w", err)
		}
	}

	for _, c := range procedureCosts(file.Path, file.Language, lines) {
		if err := b.store.AddCost(ctx, c); err != nil {
			return fmt.Errorf("record cost: %w", err)
		}
	}

	return nil
}

// readSource loads the file as lines. Captured files can vanish between
// capture and analysis (generated sources, cleaned build trees); a missing or
// binary file is skipped, not an error.
func (b *Builtin) readSource(path string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		b.logger.Warn("captured file unreadable, skipping",
			"file", path, "error", err)

		return nil, false
	}

	if bytes.IndexByte(data, 0) >= 0 {
		b.logger.Debug("captured file is binary, skipping", "file", path)

		return nil, false
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines, true
}

// WholeProgramConcurrency tallies lock acquisitions and releases across every
// captured file. An acquisition routine whose program-wide count exceeds its
// release count yields a finding in each file holding unmatched acquisitions;
// a lock taken in one file and released in another balances out.
func (b *Builtin) WholeProgramConcurrency(ctx context.Context) error {
	files, err := b.store.SourceFiles(ctx)
	if err != nil {
		return fmt.Errorf("list captured files: %w", err)
	}

	global := map[string]*lockTally{}
	perFile := map[string]map[string]*lockTally{}

	for _, file := range files {
		pairs := lockPairsFor(file.Language)
		if pairs == nil {
			continue
		}

		lines, ok := b.readSource(file.Path)
		if !ok {
			continue
		}

		perFile[file.Path] = tallyLocks(lines, pairs)
		for name, t := range perFile[file.Path] {
			g, exists := global[name]
			if !exists {
				g = &lockTally{release: t.release}
				global[name] = g
			}

			g.acquired += t.acquired
			g.released += t.released
		}
	}

	for _, file := range files {
		for name, t := range perFile[file.Path] {
			g := global[name]
			if g.acquired <= g.released || t.acquired <= t.released {
				continue
			}

			finding := capturedb.Finding{
				Checker:  CheckerLockImbalance,
				Severity: capturedb.SeverityWarning,
				Message:  fmt.Sprintf("%s acquired without a matching %s", name, t.release),
				File:     file.Path,
				Line:     t.firstLine,
			}
			if err := b.store.AddFinding(ctx, finding); err != nil {
				return fmt.Errorf("record finding: %w", err)
			}
		}
	}

	return nil
}

// lockTally tracks one acquisition routine's counts.
type lockTally struct {
	release   string
	acquired  int
	released  int
	firstLine int
}

func lockPairsFor(language string) map[string]string {
	switch {
	case cFamily[language]:
		return cLockPairs
	case javaFamily[language]:
		return javaLockPairs
	default:
		return nil
	}
}

func tallyLocks(lines []string, pairs map[string]string) map[string]*lockTally {
	tallies := map[string]*lockTally{}

	for name, release := range pairs {
		t := &lockTally{release: release}

		for i, line := range lines {
			if isCommentLine(line) {
				continue
			}

			n := callCount(line, name)
			if n > 0 && t.acquired == 0 {
				t.firstLine = i + 1
			}

			t.acquired += n
			t.released += callCount(line, release)
		}

		if t.acquired > 0 || t.released > 0 {
			tallies[name] = t
		}
	}

	return tallies
}

func unsafeCallFindings(path string, lines []string) []capturedb.Finding {
	var findings []capturedb.Finding

	for i, line := range lines {
		if isCommentLine(line) {
			continue
		}

		for name, replacement := range unsafeCalls {
			if callCount(line, name) == 0 {
				continue
			}

			findings = append(findings, capturedb.Finding{
				Checker:  CheckerUnsafeCall,
				Severity: capturedb.SeverityWarning,
				Message:  fmt.Sprintf("call to %s writes without a bound, use %s", name, replacement),
				File:     path,
				Line:     i + 1,
			})
		}
	}

	return findings
}

func resourceFindings(path string, lines []string) []capturedb.Finding {
	var findings []capturedb.Finding

	for name, release := range resourcePairs {
		acquired, released, firstLine := 0, 0, 0

		for i, line := range lines {
			if isCommentLine(line) {
				continue
			}

			n := callCount(line, name)
			if n > 0 && acquired == 0 {
				firstLine = i + 1
			}

			acquired += n
			released += callCount(line, release)
		}

		if acquired > released {
			findings = append(findings, capturedb.Finding{
				Checker:  CheckerResourceLeak,
				Severity: capturedb.SeverityWarning,
				Message:  fmt.Sprintf("%s called %d times but %s only %d", name, acquired, release, released),
				File:     path,
				Line:     firstLine,
			})
		}
	}

	return findings
}

func riskyJavaFindings(path string, lines []string) []capturedb.Finding {
	var findings []capturedb.Finding

	for i, line := range lines {
		if isCommentLine(line) {
			continue
		}

		for name, template := range riskyJavaCalls {
			if callCount(line, name) == 0 {
				continue
			}

			f := template
			f.File = path
			f.Line = i + 1
			findings = append(findings, f)
		}
	}

	return findings
}

// procedureCosts extracts procedure definitions and records the line span of
// each body under the loc metric.
func procedureCosts(path, language string, lines []string) []capturedb.Cost {
	var costs []capturedb.Cost

	for i, line := range lines {
		var (
			name string
			ok   bool
		)

		switch {
		case cFamily[language]:
			name, ok = cProcedureName(line)
		case javaFamily[language]:
			name, ok = javaProcedureName(line)
		}

		if !ok {
			continue
		}

		costs = append(costs, capturedb.Cost{
			Procedure: name,
			File:      path,
			Metric:    MetricLinesOfCode,
			Value:     float64(bodyLength(lines, i)),
		})
	}

	return costs
}

// cProcedureName matches a top-level C-style definition: an identifier at
// column zero, a parameter list, and the opening brace on the same line.
func cProcedureName(line string) (string, bool) {
	if line == "" || !isIdentByte(line[0]) {
		return "", false
	}

	if !strings.HasSuffix(strings.TrimSpace(line), "{") || strings.ContainsAny(line, ";=") {
		return "", false
	}

	open := strings.IndexByte(line, '(')
	if open <= 0 {
		return "", false
	}

	head := line[:open]

	name := trailingIdent(head)
	if name == "" || headIsStatement(head) {
		return "", false
	}

	return name, true
}

// javaProcedureName matches a method definition: modifiers or a return type,
// the method name, a parameter list, and the opening brace on the same line.
func javaProcedureName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasSuffix(trimmed, "{") || strings.ContainsRune(trimmed, '=') {
		return "", false
	}

	open := strings.IndexByte(trimmed, '(')
	if open <= 0 {
		return "", false
	}

	head := trimmed[:open]
	if strings.ContainsRune(head, '.') {
		return "", false
	}

	name := trailingIdent(head)
	if name == "" || headIsStatement(head) {
		return "", false
	}

	// A bare "name(" is a call; a definition carries a type or modifier.
	if strings.TrimSpace(head[:len(head)-len(name)]) == "" {
		return "", false
	}

	return name, true
}

// headIsStatement reports whether any token before the parameter list is a
// statement head rather than a modifier, a type, or the procedure name.
func headIsStatement(head string) bool {
	for _, tok := range strings.Fields(head) {
		if nonProcedureHeads[tok] {
			return true
		}
	}

	return false
}

// bodyLength counts lines from the definition until braces rebalance.
func bodyLength(lines []string, start int) int {
	depth := 0

	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if depth <= 0 {
			return i - start + 1
		}
	}

	return len(lines) - start
}

// callCount counts call sites of name on the line: the name on a word
// boundary followed by an opening parenthesis.
func callCount(line, name string) int {
	count := 0

	for at := 0; ; {
		idx := strings.Index(line[at:], name)
		if idx < 0 {
			return count
		}

		idx += at
		at = idx + len(name)

		if idx > 0 && isIdentByte(line[idx-1]) {
			continue
		}

		rest := strings.TrimLeft(line[at:], " \t")
		if strings.HasPrefix(rest, "(") {
			count++
		}
	}
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)

	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*")
}

func trailingIdent(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}

	start := end
	for start > 0 && isIdentByte(s[start-1]) {
		start--
	}

	return s[start:end]
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
