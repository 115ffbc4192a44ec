package source

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FromIndexFile reads a changed-files scope from a newline-delimited index
// file. Blank lines and lines starting with '#' are skipped.
func FromIndexFile(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open changed-files index: %w", err)
	}
	defer file.Close()

	set := NewSet()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		set.Add(NewFileID(line))
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read changed-files index: %w", err)
	}

	return set, nil
}
