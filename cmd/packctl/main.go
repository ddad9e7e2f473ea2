// Package main provides the entry point for the packctl CLI.
package main

import (
	"os"

	"github.com/knowpack-dev/knowpack/cmd/packctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
