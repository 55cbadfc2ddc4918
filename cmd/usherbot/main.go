// Package main is the entry point for the usherbot CLI.
package main

import (
	"os"

	"github.com/usherbot/usherbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
