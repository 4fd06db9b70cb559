package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loamsearch/ingest/internal/config"
	"github.com/loamsearch/ingest/internal/telemetry"
)

// newSplitsCmd creates the splits command, which reads the ledger the
// run command writes.
func newSplitsCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Show recently published splits",
		Long:  `Show the most recently published splits recorded in the split ledger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.MetricsDB == "" {
				return fmt.Errorf("no metrics_db configured; the split ledger is disabled")
			}

			ledger, err := telemetry.Open(cfg.MetricsDB)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			splits, err := ledger.Recent(cmd.Context(), cfg.IndexID, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(splits)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SPLIT ID\tDOCS\tPARSE ERRORS\tSIZE\tPUBLISHED")
			for _, s := range splits {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
					s.SplitID, s.Docs, s.ParseErrors, s.SizeBytes,
					s.PublishedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of splits to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
