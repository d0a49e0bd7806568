// Command stoat is the CLI for inspecting and bootstrapping stoat storage.
package main

import (
	"os"

	"github.com/weaselworks/go-stoat/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
