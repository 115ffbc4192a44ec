// Package version exposes build-time version metadata for scanforge binaries.
package version

// Populated at build time via -ldflags:
//
//	-X github.com/Sumatoshi-tech/scanforge/pkg/version.Version=v1.2.3
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the Git commit the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)
