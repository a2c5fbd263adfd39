// Command coalmine runs the dead-man's-switch canary server: the HTTP API,
// the deadline engine, or both in one process depending on --web/--background.
package main

import (
	"fmt"
	"os"

	"github.com/opswatch/coalmine/cmd/coalmine/commands"
)

var version = "dev"

func main() {
	root := commands.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coalmine: %v\n", err)
		os.Exit(1)
	}
}
