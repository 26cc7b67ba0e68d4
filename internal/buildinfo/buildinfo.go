// Package buildinfo carries version metadata stamped at link time.
package buildinfo

import "runtime/debug"

// Version is set with -ldflags "-X pinpost/internal/buildinfo.Version=...".
var Version = ""

func init() {
	if Version != "" {
		return
	}
	Version = "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
