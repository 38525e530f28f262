// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is sent with every request to the search engine.
func UserAgent() string {
	return "docsync/" + Version + " (" + Commit + ")"
}
