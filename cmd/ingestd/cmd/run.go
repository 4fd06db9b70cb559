package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loamsearch/ingest/internal/config"
	"github.com/loamsearch/ingest/internal/docmap"
	"github.com/loamsearch/ingest/internal/indexer"
	"github.com/loamsearch/ingest/internal/logging"
	"github.com/loamsearch/ingest/internal/source"
	"github.com/loamsearch/ingest/internal/split"
	"github.com/loamsearch/ingest/internal/telemetry"
)

// newRunCmd creates the run command.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ingest pipeline",
		Long: `Run the ingest pipeline: watch the spool directory for batch files,
accumulate documents into splits, and publish each split when its
commit deadline elapses.

The publish consumer here finalizes each split in place and records it
in the split ledger; in the full pipeline the packager stage takes the
handoff instead and uploads the split to durable storage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			cleanup, err := logging.SetupDefault(cfg.Logging)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runPipeline(ctx, cfg)
		},
	}
}

// runPipeline wires the spool source, the indexer stage, and the
// publish consumer under one errgroup and runs them to completion.
func runPipeline(ctx context.Context, cfg config.Config) error {
	mapper, err := docmap.NewJSONMapper(cfg.Mapping)
	if err != nil {
		return err
	}

	sink := indexer.NewChanSink(cfg.SinkBuffer)
	ix, err := indexer.New(indexer.Config{
		IndexID:       cfg.IndexID,
		Mapper:        mapper,
		ScratchDir:    cfg.ScratchDir,
		CommitTimeout: cfg.CommitTimeout.Std(),
		Sink:          sink,
	})
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	spool, err := source.New(source.Options{
		Dir:        cfg.SpoolDir,
		BufferSize: cfg.SinkBuffer,
	})
	if err != nil {
		return err
	}

	var ledger *telemetry.SplitLedger
	if cfg.MetricsDB != "" {
		ledger, err = telemetry.Open(cfg.MetricsDB)
		if err != nil {
			return err
		}
		defer func() { _ = ledger.Close() }()
	}

	slog.Info("pipeline_started",
		slog.String("index_id", cfg.IndexID),
		slog.String("spool_dir", cfg.SpoolDir),
		slog.String("scratch_dir", ix.ScratchPath()),
		slog.String("commit_timeout", cfg.CommitTimeout.String()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := spool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// stageDone tells the consumer no more splits can arrive: the
	// stage's final shutdown flush happens before Run returns.
	stageDone := make(chan struct{})
	g.Go(func() error {
		defer close(stageDone)
		defer sink.Close()
		return ix.Run(ctx, spool.Batches())
	})

	g.Go(func() error {
		return consumeSplits(ctx, ix, sink, ledger, stageDone)
	})

	err = g.Wait()

	snap := ix.Counters()
	slog.Info("pipeline_stopped",
		slog.Uint64("docs", snap.Docs),
		slog.Uint64("parse_errors", snap.ParseErrors),
		slog.Uint64("splits_published", snap.SplitsPublished))
	return err
}

// consumeSplits drains the sink, finalizing and recording each
// published split. It keeps draining after shutdown begins so the
// stage's final flush is never stranded.
func consumeSplits(ctx context.Context, ix *indexer.Indexer, sink *indexer.ChanSink,
	ledger *telemetry.SplitLedger, stageDone <-chan struct{}) error {
	var lastParseErrors uint64

	publish := func(sp *split.InProgressSplit) error {
		docs, err := sp.DocCount()
		if err != nil {
			return fmt.Errorf("count docs of split %s: %w", sp.SplitID, err)
		}

		// Parse errors are a stage-wide counter; the delta since the
		// previous publish is what this split contributed.
		snap := ix.Counters()
		parseErrors := snap.ParseErrors - lastParseErrors
		lastParseErrors = snap.ParseErrors

		if err := sp.Writer().Close(); err != nil {
			return fmt.Errorf("finalize split %s: %w", sp.SplitID, err)
		}

		var start, end int64
		if sp.TimeRange != nil {
			start, end = sp.TimeRange.Start, sp.TimeRange.End
		}
		slog.Info("split_published",
			slog.String("split_id", sp.SplitID),
			slog.String("index_id", sp.IndexID),
			slog.Uint64("docs", docs),
			slog.Uint64("size_bytes", sp.SizeInBytes),
			slog.Int64("time_range_start", start),
			slog.Int64("time_range_end", end))

		if ledger == nil {
			return nil
		}
		return ledger.Record(context.WithoutCancel(ctx), telemetry.PublishedSplit{
			SplitID:        sp.SplitID,
			IndexID:        sp.IndexID,
			Docs:           docs,
			ParseErrors:    parseErrors,
			SizeBytes:      sp.SizeInBytes,
			TimeRangeStart: start,
			TimeRangeEnd:   end,
			PublishedAt:    time.Now(),
		})
	}

	for {
		select {
		case sp := <-sink.Receive():
			if err := publish(sp); err != nil {
				return err
			}
		case <-stageDone:
			for {
				select {
				case sp := <-sink.Receive():
					if err := publish(sp); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}
