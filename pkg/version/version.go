// Package version holds build metadata, set at link time:
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/offsettree/pkg/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata. Overridden with -ldflags -X.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the metadata as printed by the version command.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", resolvedVersion(), Commit, Date)
}

// resolvedVersion falls back to the module version recorded by
// "go install module@version" when no ldflags were given.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}

	return info.Main.Version
}
