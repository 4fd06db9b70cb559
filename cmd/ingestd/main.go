// Package main provides the entry point for the ingestd daemon.
package main

import (
	"os"

	"github.com/loamsearch/ingest/cmd/ingestd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
