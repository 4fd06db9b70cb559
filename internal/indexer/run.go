package indexer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// shutdownFlushTimeout bounds the final handoff attempt when the run
// context is already cancelled.
const shutdownFlushTimeout = 5 * time.Second

// Run is the stage's actor loop: one goroutine consuming batches in
// arrival order, with a periodic tick so a split whose commit deadline
// passes while input is stalled still gets flushed. Checking the
// deadline only after each batch would let a split sit unflushed
// forever once batches stop arriving.
//
// Run returns when ctx is cancelled or the batch channel is closed,
// after attempting a final flush so an in-progress split is not lost.
func (ix *Indexer) Run(ctx context.Context, batches <-chan RawDocBatch) error {
	ticker := time.NewTicker(ix.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ix.shutdownFlush()
		case batch, ok := <-batches:
			if !ok {
				// During shutdown the source closes the channel after
				// ctx is already dead; flushing on that context would
				// abort the send and strand the split.
				if ctx.Err() != nil {
					return ix.shutdownFlush()
				}
				return ix.Flush(ctx)
			}
			if err := ix.ProcessBatch(ctx, batch); err != nil {
				return err
			}
		case <-ticker.C:
			if err := ix.flushIfDeadlinePassed(ctx); err != nil {
				return err
			}
		}
	}
}

// tickInterval derives the deadline-check cadence from the commit
// timeout: frequent enough that a deadline is observed promptly,
// never busier than 100ms.
func (ix *Indexer) tickInterval() time.Duration {
	interval := ix.commitTimeout / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

// shutdownFlush tries to hand off the in-progress split on a detached
// context; the run context is already dead. A sink that never accepts
// it within the timeout is tolerated, but the split it handed back is
// discarded so a configured scratch dir does not accumulate orphaned
// split directories.
func (ix *Indexer) shutdownFlush() error {
	if ix.current == nil {
		return nil
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), ix.shutdownTimeout)
	defer cancel()

	if err := ix.Flush(flushCtx); err != nil {
		slog.Error("shutdown_flush_failed", slog.String("error", err.Error()))
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if ix.current != nil {
			if derr := ix.current.Discard(); derr != nil {
				slog.Warn("split_discard_failed", slog.String("error", derr.Error()))
			}
			ix.current = nil
			ix.nextCommitDeadline = time.Time{}
		}
	}
	return nil
}
