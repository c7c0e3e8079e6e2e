// Package main is the entry point for the vivarium CLI.
package main

import (
	"os"

	"github.com/vivarium-collective/vivarium/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
