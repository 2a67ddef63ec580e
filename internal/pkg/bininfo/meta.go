// Values in this file are injected at build time via -ldflags "-X ...".
// Renaming the variables breaks the release pipeline.

package bininfo

var (
	// Version is the SemVer version of the gateway binary, optionally suffixed with +<commit>.
	Version = "v0.0.0"

	// BuildTime is the RFC3339 time at which the binary was built.
	BuildTime = "1970-01-01T00:00:00Z"
)
