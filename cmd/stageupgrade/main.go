// Package main is the entry point for the stageupgrade CLI.
//
// stageupgrade brings persisted pipeline records forward to the versions
// their stage types currently declare, using upgrade definitions written in
// YAML. Upgrades can be audited in Postgres.
//
// Commands: upgrade, plan, history.
//
//	stageupgrade --help
package main

import (
	"fmt"
	"os"

	"github.com/dcshock/stageupgrade/cmd/stageupgrade/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
