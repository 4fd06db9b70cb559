package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loamsearch/ingest/internal/docmap"
	"github.com/loamsearch/ingest/internal/split"
)

// Config carries the construction parameters for the stage, supplied
// once at startup.
type Config struct {
	// IndexID identifies the index this stage builds splits for.
	IndexID string

	// Mapper is the index-configuration capability.
	Mapper docmap.Mapper

	// ScratchDir is an optional persistent scratch path. Empty means
	// a process-owned temp directory.
	ScratchDir string

	// CommitTimeout bounds how long a split accumulates before it is
	// rotated and handed downstream. Zero rotates after every batch.
	CommitTimeout time.Duration

	// Sink receives completed splits.
	Sink Sink
}

// Indexer is the ingest stage. It is a single logical thread of
// control: exactly one goroutine calls ProcessBatch, Flush, and Run;
// only Counters snapshots are safe from elsewhere.
type Indexer struct {
	indexID       string
	mapper        docmap.Mapper
	scratch       *split.ScratchDirectory
	commitTimeout time.Duration
	sink          Sink
	tsField       string
	hasTSField    bool

	// current and nextCommitDeadline are set together: the deadline is
	// armed iff a split is accumulating.
	current            *split.InProgressSplit
	nextCommitDeadline time.Time

	counters Counters

	// now is the stage clock, injectable for deadline tests.
	now func() time.Time

	// shutdownTimeout bounds the final handoff attempt in Run.
	shutdownTimeout time.Duration
}

// New constructs the stage. Scratch-directory allocation failure is
// fatal: the stage cannot start without a scratch location.
func New(cfg Config) (*Indexer, error) {
	if cfg.IndexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("mapper is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.CommitTimeout < 0 {
		return nil, fmt.Errorf("commit timeout must not be negative")
	}

	scratch, err := split.NewScratchDirectory(cfg.ScratchDir)
	if err != nil {
		return nil, err
	}

	tsField, hasTSField := cfg.Mapper.TimestampField()

	return &Indexer{
		indexID:         cfg.IndexID,
		mapper:          cfg.Mapper,
		scratch:         scratch,
		commitTimeout:   cfg.CommitTimeout,
		sink:            cfg.Sink,
		tsField:         tsField,
		hasTSField:      hasTSField,
		now:             time.Now,
		shutdownTimeout: shutdownFlushTimeout,
	}, nil
}

// Counters returns a snapshot of the stage's observable state.
func (ix *Indexer) Counters() CountersSnapshot {
	return ix.counters.Snapshot()
}

// ScratchPath returns the resolved scratch directory location.
func (ix *Indexer) ScratchPath() string {
	return ix.scratch.Path()
}

// ProcessBatch drives one batch through the stage: lazy split
// creation, per-document parsing and accumulation, then a deadline
// check that may rotate the split.
//
// Per-document parse failures are counted and skipped; every other
// failure aborts the batch and propagates to the supervisor.
func (ix *Indexer) ProcessBatch(ctx context.Context, batch RawDocBatch) error {
	// An empty batch opens no split: the commit clock starts with the
	// first document, not the first delivery.
	if len(batch.Docs) == 0 {
		return ix.flushIfDeadlinePassed(ctx)
	}

	current, err := ix.currentSplit()
	if err != nil {
		return err
	}

	for _, raw := range batch.Docs {
		// Size reflects ingest-side load, so it counts documents
		// that later fail to parse.
		current.SizeInBytes += uint64(len(raw))

		doc, err := ix.mapper.DocFromJSON(raw)
		if err != nil {
			ix.counters.parseErrors.Add(1)
			slog.Warn("doc_parse_failed",
				slog.String("index_id", ix.indexID),
				slog.String("error", err.Error()))
			continue
		}

		if ix.hasTSField {
			if ts, ok := doc.Timestamp(ix.tsField); ok {
				if current.TimeRange == nil {
					current.TimeRange = &split.TimeRange{Start: ts, End: ts}
				} else {
					current.TimeRange.Extend(ts)
				}
			}
		}

		if err := current.AddDocument(doc); err != nil {
			return err
		}
		ix.counters.docs.Add(1)
	}

	return ix.flushIfDeadlinePassed(ctx)
}

// flushIfDeadlinePassed rotates the current split when its commit
// deadline has been reached. No-op while idle.
func (ix *Indexer) flushIfDeadlinePassed(ctx context.Context) error {
	if ix.nextCommitDeadline.IsZero() {
		return nil
	}
	if ix.now().Before(ix.nextCommitDeadline) {
		return nil
	}
	return ix.Flush(ctx)
}

// Flush detaches the current split and hands it to the sink, blocking
// until the sink accepts it. A flush with no current split is a no-op.
// On a send failure the stage keeps owning the split and the error
// carries its identity for the supervisor; a completed split is never
// silently dropped.
func (ix *Indexer) Flush(ctx context.Context) error {
	if ix.current == nil {
		return nil
	}

	detached := ix.current
	splitID := detached.SplitID
	sizeBytes := detached.SizeInBytes
	deadline := ix.nextCommitDeadline
	ix.current = nil
	ix.nextCommitDeadline = time.Time{}

	// Ownership transfers on a successful send only. A failed send
	// hands the split back to the stage to be retried, discarded, or
	// reclaimed by Close; it is never left detached.
	if err := ix.sink.Send(ctx, detached); err != nil {
		ix.current = detached
		ix.nextCommitDeadline = deadline
		return fmt.Errorf("handoff of split %s (%d bytes): %w", splitID, sizeBytes, err)
	}

	ix.counters.splitsPublished.Add(1)
	slog.Info("split_handoff",
		slog.String("index_id", ix.indexID),
		slog.String("split_id", splitID),
		slog.Uint64("size_bytes", sizeBytes))
	return nil
}

// currentSplit returns the in-progress split, creating it and arming
// the commit deadline when the stage is idle.
func (ix *Indexer) currentSplit() (*split.InProgressSplit, error) {
	if ix.current != nil {
		return ix.current, nil
	}

	created, err := split.NewInDir(ix.indexID, ix.scratch.Path(), ix.mapper.Schema())
	if err != nil {
		return nil, err
	}

	ix.current = created
	ix.nextCommitDeadline = ix.now().Add(ix.commitTimeout)
	slog.Debug("split_created",
		slog.String("index_id", ix.indexID),
		slog.String("split_id", created.SplitID))
	return created, nil
}

// Close releases the scratch directory. An unflushed split, if any,
// is discarded; callers that care should Flush first.
func (ix *Indexer) Close() error {
	if ix.current != nil {
		if err := ix.current.Discard(); err != nil {
			slog.Warn("split_discard_failed", slog.String("error", err.Error()))
		}
		ix.current = nil
		ix.nextCommitDeadline = time.Time{}
	}
	return ix.scratch.Close()
}
