// Package version holds build metadata injected at compile time via
// -ldflags. Local builds fall back to "dev"/"unknown".
package version

// Version is the semantic version of this build (e.g. "v0.3.1").
var Version = "dev"

// Commit is the short git commit hash this binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build timestamp in RFC 3339 format.
var BuildDate = "unknown"
