package indexer

import "sync/atomic"

// Counters is the stage's observable operational state. Only the stage
// goroutine increments; atomics make snapshots safe from any goroutine.
type Counters struct {
	docs            atomic.Uint64
	parseErrors     atomic.Uint64
	splitsPublished atomic.Uint64
}

// CountersSnapshot is a point-in-time copy of the counters.
type CountersSnapshot struct {
	// Docs is the number of documents successfully indexed.
	Docs uint64 `json:"docs"`

	// ParseErrors is the number of documents dropped as malformed.
	ParseErrors uint64 `json:"parse_errors"`

	// SplitsPublished is the number of splits handed downstream.
	SplitsPublished uint64 `json:"splits_published"`
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		Docs:            c.docs.Load(),
		ParseErrors:     c.parseErrors.Load(),
		SplitsPublished: c.splitsPublished.Load(),
	}
}
