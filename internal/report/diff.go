package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/scanforge/internal/capturedb"
	"github.com/Sumatoshi-tech/scanforge/internal/results"
)

// similarityThreshold is the minimum message similarity for two findings with
// the same checker, file, and procedure to count as the same issue. Checker
// messages embed qualifiers (counts, symbol names) that drift between runs
// without the issue changing.
const similarityThreshold = 0.6

// Differential output file names under the differential directory.
const (
	IntroducedFile  = "introduced.json"
	FixedFile       = "fixed.json"
	PreexistingFile = "preexisting.json"
)

// Differential classifies the findings of a current report against a
// previous one. Introduced and preexisting carry the current findings, fixed
// carries the previous ones.
type Differential struct {
	Introduced  []capturedb.Finding `json:"introduced"`
	Fixed       []capturedb.Finding `json:"fixed"`
	Preexisting []capturedb.Finding `json:"preexisting"`
}

// Diff classifies current findings against previous ones. Findings match
// when checker, file, and procedure agree and the messages are similar
// enough; line numbers are ignored so unrelated edits do not churn the
// classification.
func Diff(previous, current []capturedb.Finding) Differential {
	dmp := diffmatchpatch.New()

	pool := make(map[string][]capturedb.Finding)
	for _, f := range previous {
		key := matchKey(f)
		pool[key] = append(pool[key], f)
	}

	diff := Differential{
		Introduced:  []capturedb.Finding{},
		Fixed:       []capturedb.Finding{},
		Preexisting: []capturedb.Finding{},
	}

	for _, f := range current {
		key := matchKey(f)

		best, bestAt := 0.0, -1

		for i, candidate := range pool[key] {
			if s := messageSimilarity(dmp, f.Message, candidate.Message); bestAt < 0 || s > best {
				best, bestAt = s, i
			}
		}

		if bestAt >= 0 && best >= similarityThreshold {
			pool[key] = append(pool[key][:bestAt], pool[key][bestAt+1:]...)
			diff.Preexisting = append(diff.Preexisting, f)

			continue
		}

		diff.Introduced = append(diff.Introduced, f)
	}

	for _, rest := range pool {
		diff.Fixed = append(diff.Fixed, rest...)
	}

	sortFindings(diff.Introduced)
	sortFindings(diff.Fixed)
	sortFindings(diff.Preexisting)

	return diff
}

// DiffReports loads two findings reports and classifies them.
func DiffReports(previousPath, currentPath string) (Differential, error) {
	previous, err := ReadFindings(previousPath)
	if err != nil {
		return Differential{}, err
	}

	current, err := ReadFindings(currentPath)
	if err != nil {
		return Differential{}, err
	}

	return Diff(previous.Findings, current.Findings), nil
}

// WriteDifferential writes the three classification files into the results
// directory's differential/ subdirectory.
func WriteDifferential(dir results.Dir, diff Differential) error {
	if err := os.MkdirAll(dir.DifferentialDir(), 0o755); err != nil {
		return fmt.Errorf("create differential directory: %w", err)
	}

	buckets := map[string][]capturedb.Finding{
		IntroducedFile:  diff.Introduced,
		FixedFile:       diff.Fixed,
		PreexistingFile: diff.Preexisting,
	}

	for name, findings := range buckets {
		if findings == nil {
			findings = []capturedb.Finding{}
		}

		path := filepath.Join(dir.DifferentialDir(), name)
		if err := writeJSON(path, findings); err != nil {
			return fmt.Errorf("write differential %s: %w", name, err)
		}
	}

	return nil
}

func matchKey(f capturedb.Finding) string {
	return f.Checker + "\x00" + f.File + "\x00" + f.Procedure
}

// messageSimilarity is the share of both messages covered by common text,
// in [0, 1].
func messageSimilarity(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1
	}

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	equal := 0

	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			equal += utf8.RuneCountInString(d.Text)
		}
	}

	return float64(2*equal) / float64(total)
}

func sortFindings(findings []capturedb.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}

		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}

		if findings[i].Checker != findings[j].Checker {
			return findings[i].Checker < findings[j].Checker
		}

		return findings[i].Message < findings[j].Message
	})
}
