// Package version reports how the colstat binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const arrowModule = "github.com/apache/arrow-go/v18"

// Version and Commit are set with -ldflags "-X"; Commit falls back to the
// VCS stamp of the build.
var (
	Version = "dev"
	Commit  = ""
)

// BuildInfo describes the binary and the Arrow release it reads data with.
type BuildInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Modified bool   `json:"modified,omitempty"`
	Go       string `json:"go"`
	Arrow    string `json:"arrow,omitempty"`
}

// Info collects build information.
func Info() BuildInfo {
	info := BuildInfo{Version: Version, Commit: Commit, Go: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.apply(bi)
	return info
}

func (b *BuildInfo) apply(bi *debug.BuildInfo) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	for _, dep := range bi.Deps {
		if dep.Path == arrowModule {
			b.Arrow = dep.Version
		}
	}
}

func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Version: %s\n", b.Version)
	if b.Commit != "" {
		commit := b.Commit[:min(len(b.Commit), 12)]
		if b.Modified {
			commit += " (modified)"
		}
		fmt.Fprintf(&sb, "Commit:  %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go:      %s\n", b.Go)
	if b.Arrow != "" {
		fmt.Fprintf(&sb, "Arrow:   %s\n", b.Arrow)
	}
	return sb.String()
}
