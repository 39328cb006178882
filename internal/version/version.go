// Package version holds application version info, set at build time.
// Build with: go build -ldflags "-X tlsrig/internal/version.Version=v1.0.0"
package version

// Version is the application version. Defaults to "dev" when not set via ldflags.
var Version = "dev"
