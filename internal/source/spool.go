// Package source feeds the indexer stage from a spool directory:
// producers rename newline-delimited JSON batch files into the spool
// dir, and each file becomes one RawDocBatch. Files are moved to done/
// after handoff or failed/ when unreadable.
package source

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	ingesterr "github.com/loamsearch/ingest/internal/errors"
	"github.com/loamsearch/ingest/internal/indexer"
)

const (
	// batchExt is the only file extension the spool considers.
	batchExt = ".ndjson"

	// seenCacheSize bounds the dedupe cache for fsnotify, which can
	// deliver several events for one file.
	seenCacheSize = 1024

	// maxLineBytes bounds a single document payload in a spool file.
	maxLineBytes = 16 * 1024 * 1024
)

// Options configures the spool source.
type Options struct {
	// Dir is the watched spool directory.
	Dir string

	// BufferSize is the batch channel capacity.
	BufferSize int
}

// Spool watches a directory and emits one RawDocBatch per batch file.
type Spool struct {
	dir       string
	doneDir   string
	failedDir string
	watcher   *fsnotify.Watcher
	batches   chan indexer.RawDocBatch
	seen      *lru.Cache[string, struct{}]
}

// New creates the spool source and its working subdirectories.
func New(opts Options) (*Spool, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	doneDir := filepath.Join(opts.Dir, "done")
	failedDir := filepath.Join(opts.Dir, "failed")
	for _, dir := range []string{opts.Dir, doneDir, failedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create spool directory %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create spool watcher: %w", err)
	}
	if err := watcher.Add(opts.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch spool directory %s: %w", opts.Dir, err)
	}

	seen, _ := lru.New[string, struct{}](seenCacheSize)

	return &Spool{
		dir:       opts.Dir,
		doneDir:   doneDir,
		failedDir: failedDir,
		watcher:   watcher,
		batches:   make(chan indexer.RawDocBatch, opts.BufferSize),
		seen:      seen,
	}, nil
}

// Batches returns the channel the indexer stage consumes from. It is
// closed when Run returns.
func (s *Spool) Batches() <-chan indexer.RawDocBatch {
	return s.batches
}

// Run sweeps files already in the spool, then reacts to filesystem
// events until ctx is cancelled. Unreadable files are moved aside and
// logged; they never stop the source.
func (s *Spool) Run(ctx context.Context) error {
	defer close(s.batches)
	defer func() { _ = s.watcher.Close() }()

	if err := s.sweep(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			// Producers are expected to rename files into the spool,
			// so Create and Rename mark complete files. Write-in-place
			// producers get picked up on their final Write event too,
			// at the risk of reading a partial file.
			if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if err := s.handleFile(ctx, event.Name); err != nil {
				return err
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("spool_watch_error", slog.String("error", err.Error()))
		}
	}
}

// sweep processes batch files that were already waiting in the spool
// before the watcher started.
func (s *Spool) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.handleFile(ctx, filepath.Join(s.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// handleFile turns one spool file into a batch and emits it. Returns
// an error only when the send is aborted by ctx; file-level problems
// are contained here.
func (s *Spool) handleFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, batchExt) || strings.HasPrefix(name, ".") {
		return nil
	}
	if _, dup := s.seen.Get(name); dup {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		// Already moved or deleted; a later event for the same name
		// may legitimately be a new file, so don't mark it seen.
		return nil
	}
	s.seen.Add(name, struct{}{})

	batch, err := readBatchFile(path)
	if err != nil {
		slog.Warn("spool_file_unreadable",
			slog.String("file", name),
			slog.String("error", err.Error()))
		s.archive(path, s.failedDir)
		return nil
	}
	if batch.NumDocs() == 0 {
		s.archive(path, s.doneDir)
		return nil
	}

	select {
	case s.batches <- batch:
	case <-ctx.Done():
		// Not yet handed off; leave the file for the next run.
		s.seen.Remove(name)
		return ctx.Err()
	}

	s.archive(path, s.doneDir)
	slog.Debug("spool_batch_emitted",
		slog.String("file", name),
		slog.Int("docs", batch.NumDocs()))
	return nil
}

// readBatchFile reads one NDJSON file into a batch, one payload per
// non-blank line.
func readBatchFile(path string) (indexer.RawDocBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return indexer.RawDocBatch{}, ingesterr.Wrap(ingesterr.ErrCodeSpoolRead, err)
	}
	defer func() { _ = f.Close() }()

	var docs [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		doc := make([]byte, len(line))
		copy(doc, line)
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return indexer.RawDocBatch{}, ingesterr.Wrap(ingesterr.ErrCodeSpoolRead, err)
	}
	return indexer.RawDocBatch{Docs: docs}, nil
}

// archive renames a processed file into dir and releases its dedupe
// entry, so a producer may reuse the file name for a later batch. The
// dedupe cache only covers the in-flight window; post-archive duplicate
// events are absorbed by the stat check in handleFile. On a failed
// rename the entry is kept, since the file is still in the spool and a
// rescan of it would emit the batch twice.
func (s *Spool) archive(path, dir string) {
	name := filepath.Base(path)
	target := filepath.Join(dir, name)
	if err := os.Rename(path, target); err != nil {
		slog.Warn("spool_file_move_failed",
			slog.String("file", name),
			slog.String("error", err.Error()))
		return
	}
	s.seen.Remove(name)
}
