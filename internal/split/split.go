package split

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/loamsearch/ingest/internal/docmap"
	ingesterr "github.com/loamsearch/ingest/internal/errors"
)

// TimeRange is an inclusive [Start, End] range of observed timestamps.
type TimeRange struct {
	Start int64
	End   int64
}

// Extend widens the range to include ts. It never narrows.
func (r *TimeRange) Extend(ts int64) {
	if ts < r.Start {
		r.Start = ts
	}
	if ts > r.End {
		r.End = ts
	}
}

// InProgressSplit is one not-yet-finalized index segment. It is owned
// exclusively by the indexer stage until handoff; SizeInBytes and
// TimeRange are plain accumulator fields the stage mutates directly.
type InProgressSplit struct {
	// IndexID is the owning index's identifier.
	IndexID string

	// SplitID uniquely identifies this split.
	SplitID string

	// SizeInBytes is the running sum of raw input sizes routed into
	// this split, counted before parsing.
	SizeInBytes uint64

	// TimeRange is the observed timestamp range, nil until the first
	// timestamp is seen. Once set it only ever widens.
	TimeRange *TimeRange

	writer bleve.Index
	dir    string
}

// NewInDir allocates a fresh segment writer for indexID rooted in its
// own subdirectory of dir, using the given schema.
func NewInDir(indexID string, dir string, schema mapping.IndexMapping) (*InProgressSplit, error) {
	splitID := uuid.NewString()
	splitDir := filepath.Join(dir, splitID)

	writer, err := bleve.New(splitDir, schema)
	if err != nil {
		return nil, ingesterr.SplitInitError(
			fmt.Sprintf("cannot create segment writer in %s", splitDir), err).
			WithDetail("index_id", indexID).
			WithDetail("split_id", splitID)
	}

	return &InProgressSplit{
		IndexID: indexID,
		SplitID: splitID,
		writer:  writer,
		dir:     splitDir,
	}, nil
}

// AddDocument appends one parsed document to the segment writer.
// A failure here means the split itself is unusable.
func (s *InProgressSplit) AddDocument(doc *docmap.Document) error {
	if err := s.writer.Index(doc.ID, doc.Fields); err != nil {
		return ingesterr.AppendError(
			fmt.Sprintf("cannot append document %s", doc.ID), err).
			WithDetail("split_id", s.SplitID)
	}
	return nil
}

// Writer exposes the segment writer handle. After handoff the receiver
// owns it and is responsible for finalizing (committing) it.
func (s *InProgressSplit) Writer() bleve.Index {
	return s.writer
}

// Dir returns the split's working directory within the scratch dir.
func (s *InProgressSplit) Dir() string {
	return s.dir
}

// DocCount reports the number of documents appended so far.
func (s *InProgressSplit) DocCount() (uint64, error) {
	return s.writer.DocCount()
}

// Discard closes the writer and removes the split's working directory.
// Used when a split is abandoned rather than handed off.
func (s *InProgressSplit) Discard() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close segment writer: %w", err)
	}
	return os.RemoveAll(s.dir)
}
