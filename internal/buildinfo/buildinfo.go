// Package buildinfo exposes compile-time metadata of the googler-web binary.
package buildinfo

// Overridden via -ldflags "-X" during release builds.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)

// String renders the metadata on one line for startup logs.
func String() string {
	return "Version: " + Version + ", Commit: " + Commit + ", BuiltAt: " + BuildDate
}
