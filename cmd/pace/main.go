// Package main is the entrypoint for pace: the table viewer server and its
// command-line tools.
package main

import (
	"os"

	"github.com/canonica-labs/pace/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
