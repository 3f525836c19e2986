// Package main is the entry point for the histreamer CLI.
package main

import (
	"os"

	"github.com/jmylchreest/histreamer/cmd/histreamer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
