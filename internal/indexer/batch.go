// Package indexer implements the stateful ingest stage: it consumes
// batches of raw documents, accumulates them into an in-progress split,
// rotates the split on a commit deadline, and hands completed splits to
// the downstream sink.
package indexer

// RawDocBatch is one ordered ingestion unit of raw document payloads.
// Batches are consumed immediately and never stored.
type RawDocBatch struct {
	// Docs are the raw payloads in arrival order.
	Docs [][]byte
}

// NumDocs returns the number of payloads in the batch.
func (b RawDocBatch) NumDocs() int {
	return len(b.Docs)
}

// NumBytes returns the total raw payload size of the batch.
func (b RawDocBatch) NumBytes() uint64 {
	var total uint64
	for _, doc := range b.Docs {
		total += uint64(len(doc))
	}
	return total
}
