package main

import (
	"os"

	"github.com/go-delve/evloc/cmd/evloc/cmds"
	"github.com/go-delve/evloc/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.EvlocVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
