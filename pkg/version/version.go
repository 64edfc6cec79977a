// Package version holds the version of evloc and the details of the build
// that produced the running binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version represents the current version of evloc.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// EvlocVersion is the current version of evloc.
var EvlocVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	if strings.HasPrefix(v.Build, "$Id$") {
		v.Build = vcsRevision(v.Build)
	}
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

// vcsRevision returns the revision the binary was built from, or def when
// the toolchain did not record one.
func vcsRevision(def string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return def
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return def
}

// BuildInfo returns the Go version and the modules evloc was built with.
func BuildInfo() string {
	var buf strings.Builder
	buf.WriteString(runtime.Version())
	buf.WriteByte('\n')
	info, ok := debug.ReadBuildInfo()
	if !ok {
		buf.WriteString("not built in module mode")
		return buf.String()
	}
	fmt.Fprintf(&buf, " mod\t%s\t%s\n", info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		fmt.Fprintf(&buf, " dep\t%s\t%s", dep.Path, dep.Version)
		if dep.Replace != nil {
			fmt.Fprintf(&buf, "\t=> %s\t%s", dep.Replace.Path, dep.Replace.Version)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
