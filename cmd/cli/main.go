// Package main is the entry point for the taxwelfare CLI.
package main

import (
	"os"

	"tax-uncertainty/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
