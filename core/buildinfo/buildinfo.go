// Package buildinfo carries the release stamp of the binary.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Overridden with -ldflags, for example
//
//	-X 'github.com/m3rciful/surveybot/core/buildinfo.Version=v0.3.0'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

func init() {
	if Commit != "local" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value[:min(len(s.Value), 12)]
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String renders "version (commit, date)" for banners and -version.
func String() string {
	var b strings.Builder
	b.WriteString(Version)
	b.WriteString(" (")
	b.WriteString(Commit)
	if Date != "" {
		b.WriteString(", ")
		b.WriteString(Date)
	}
	b.WriteString(")")
	return b.String()
}
