// ABOUTME: Entry point for the kith CLI and MCP server
// ABOUTME: Hands argument parsing to the cobra command tree
package main

import (
	"os"

	"github.com/harperreed/kith/cli"
)

const version = "0.1.0"

func main() {
	os.Exit(cli.Execute(version))
}
