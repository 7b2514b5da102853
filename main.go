package main

import (
	"github.com/mozilla-ai/mcporch/cmd"
)

func main() {
	// Execute the root command.
	cmd.Execute()
}
