// Command probemap is the entry point for the probemap port scanner.
package main

import (
	"github.com/probemap/probemap/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
