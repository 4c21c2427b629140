// Command confirmctl is the reference entry point that wires the
// confirmation core's config, cache, store, preview, and service packages
// into a runnable process for operators and for local smoke testing.
package main

import (
	"fmt"
	"os"

	"github.com/vitaliisemenov/agent-confirmation/cmd/confirmctl/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cmd.SetVersion(version, buildTime, gitCommit)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
