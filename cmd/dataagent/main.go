// Package main is the entry point for the dataagent CLI.
package main

import (
	"os"

	"github.com/dataagent-io/dataagent/cmd/dataagent/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		if app.IsUsageError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
