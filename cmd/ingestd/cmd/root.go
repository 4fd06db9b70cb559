// Package cmd provides the CLI commands for ingestd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamsearch/ingest/pkg/version"
)

// NewRootCmd creates the root command for the ingestd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingestd",
		Short: "Document-ingestion stage of the Loam search pipeline",
		Long: `ingestd consumes batches of raw JSON documents, builds them into
committed on-disk index segments (splits), and hands finished splits
to the downstream packager stage.

Batch files in newline-delimited JSON are renamed into the spool
directory by producers; each file becomes one ingestion batch.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("ingestd version {{.Version}}\n")

	cmd.PersistentFlags().StringP("config", "c", "ingest.yaml", "Path to the config file")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSplitsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
