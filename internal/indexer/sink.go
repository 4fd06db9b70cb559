package indexer

import (
	"context"
	"sync"

	ingesterr "github.com/loamsearch/ingest/internal/errors"
	"github.com/loamsearch/ingest/internal/split"
)

// Sink accepts completed splits. Send blocks until the downstream
// stage accepts the split; this is the stage's backpressure point.
type Sink interface {
	Send(ctx context.Context, s *split.InProgressSplit) error
}

// ChanSink is a channel-backed Sink with explicit close semantics:
// sending on a closed sink returns a handoff error instead of
// panicking, so the stage can surface the failure to its supervisor.
type ChanSink struct {
	ch        chan *split.InProgressSplit
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Sink = (*ChanSink)(nil)

// NewChanSink creates a sink with the given channel buffer. A buffer
// of zero gives fully synchronous handoff.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{
		ch:     make(chan *split.InProgressSplit, buffer),
		closed: make(chan struct{}),
	}
}

// Send hands one completed split downstream, blocking until the
// receiver accepts it, the sink is closed, or ctx is done.
func (s *ChanSink) Send(ctx context.Context, sp *split.InProgressSplit) error {
	// Closed wins over an available buffer slot.
	select {
	case <-s.closed:
		return ingesterr.SinkClosedError("downstream sink is closed", nil).
			WithDetail("split_id", sp.SplitID)
	default:
	}

	select {
	case s.ch <- sp:
		return nil
	case <-s.closed:
		return ingesterr.SinkClosedError("downstream sink is closed", nil).
			WithDetail("split_id", sp.SplitID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the channel the downstream stage consumes from.
func (s *ChanSink) Receive() <-chan *split.InProgressSplit {
	return s.ch
}

// Close marks the sink closed. Safe to call more than once. Splits
// already buffered remain readable via Receive.
func (s *ChanSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
