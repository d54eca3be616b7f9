package buildinfo

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/pointshop/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/pointshop/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/pointshop/core/buildinfo.Date=2025-08-30T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Info is a snapshot of the build metadata, suitable for JSON responses.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the build metadata of the running binary.
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// String renders a single human readable line, used by --version.
func (i Info) String() string {
	if i.Date == "" {
		return fmt.Sprintf("%s (%s, %s)", i.Version, i.Commit, i.GoVersion)
	}
	return fmt.Sprintf("%s (%s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}
