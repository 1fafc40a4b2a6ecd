package version

import "fmt"

var (
	// Build-time injected information
	Version    string
	CommitHash string
	BuildTime  string
)

// GetVersion returns the version information in a human consumable way. This is
// intended to be used when the user requests the version information or in the
// User-Agent header.
func GetVersion() string {
	if Version == "" {
		return "development"
	}
	if CommitHash == "" {
		return Version
	}
	return fmt.Sprintf("%s(%s)", Version, CommitHash)
}
