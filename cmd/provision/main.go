// Package main is the entry point for the provision CLI.
//
// provision creates short-lived cloud nodes, installs bundles of scripts and
// files on them over SSH, and destroys them again once their tests passed.
//
// Commands: list, deploy, destroy, version.
//
// For detailed usage information, run:
//
//	provision --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/provision/cmd/provision/commands"
	"github.com/imamik/provision/cmd/provision/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(handlers.ExitCode(err))
	}
}
