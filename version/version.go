// Package version exposes build version information. Version and Commit
// are meant to be stamped at build time with -ldflags; when they are
// not, the module's VCS build info fills in what it can.
package version

import (
	"runtime/debug"
	"time"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X .../version.Version=1.4.0 -X .../version.Commit=abc1234"
var (
	Version = "dev"
	Commit  = ""
)

// Info is the resolved build identity.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	Dirty     bool      `json:"dirty"`
}

// Get resolves the build identity, preferring ldflags values over VCS
// build info.
func Get() Info {
	info := Info{
		Version: Version,
		Commit:  Commit,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				info.BuildDate = t
			}
		}
	}
	return info
}

// Short returns "version-commit", with a -dirty suffix for modified
// builds. With no commit available it is just the version.
func Short() string {
	info := Get()
	out := info.Version
	if info.Commit != "" {
		out += "-" + info.Commit
	}
	if info.Dirty {
		out += "-dirty"
	}
	return out
}
