// Command coalmine-cli is an operator tool for a coalmine server: create,
// inspect, and trigger canaries, or drop into an interactive console.
package main

import (
	"fmt"
	"os"

	"github.com/opswatch/coalmine/cmd/coalmine-cli/commands"
)

var version = "dev"

func main() {
	root := commands.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coalmine-cli: %v\n", err)
		os.Exit(1)
	}
}
