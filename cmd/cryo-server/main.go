// Package main is the entry point for the restoration server.
// It only wires the CLI. NO business logic belongs here.
package main

import (
	"os"

	"github.com/MRamiBalles/CryoRestore/server/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
