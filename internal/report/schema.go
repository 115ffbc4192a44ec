package report

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed findings-schema.json
var findingsSchema []byte

// ErrInvalidReport indicates a findings report that does not match the
// report schema.
var ErrInvalidReport = errors.New("findings report does not match schema")

// ValidateFindings checks raw report bytes against the embedded findings
// schema.
func ValidateFindings(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(findingsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate findings report: %w", err)
	}

	if result.Valid() {
		return nil
	}

	descriptions := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		descriptions = append(descriptions, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(descriptions, "; "))
}
