// Package main is the entry point for the waypaneld daemon.
package main

import (
	"os"

	"github.com/waypanel-io/waypanel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
