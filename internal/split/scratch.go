// Package split holds the on-disk working state of the ingest stage:
// the scratch directory splits are built in, and the in-progress split
// that accumulates documents until it is handed downstream.
package split

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ingesterr "github.com/loamsearch/ingest/internal/errors"
)

// scratchKind tags who owns the scratch directory's lifetime.
type scratchKind int

const (
	// scratchExternal is a caller-supplied path; never deleted here.
	scratchExternal scratchKind = iota
	// scratchOwnedTemp is a process-owned temp dir, removed on Close.
	scratchOwnedTemp
)

// lockFileName guards a scratch dir against concurrent ingest processes.
const lockFileName = ".ingest.lock"

// ScratchDirectory resolves the filesystem location where splits are
// built. Read-only after construction apart from Close.
type ScratchDirectory struct {
	kind scratchKind
	path string
	lock *flock.Flock
}

// NewScratchDirectory constructs a scratch directory from an optional
// caller path. An empty path allocates a process-owned temp directory.
// The directory is locked exclusively; a second ingest process pointed
// at the same scratch dir fails fast instead of corrupting splits.
func NewScratchDirectory(path string) (*ScratchDirectory, error) {
	kind := scratchExternal
	if path == "" {
		tempDir, err := os.MkdirTemp("", "loam-ingest-")
		if err != nil {
			return nil, ingesterr.ScratchError("cannot allocate temp scratch directory", err)
		}
		path = tempDir
		kind = scratchOwnedTemp
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, ingesterr.ScratchError(fmt.Sprintf("cannot create scratch directory %s", path), err)
	}

	lock := flock.New(filepath.Join(path, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, ingesterr.ScratchError("cannot lock scratch directory", err).
			WithDetail("path", path)
	}
	if !acquired {
		return nil, ingesterr.ScratchError("scratch directory is in use by another process", nil).
			WithDetail("path", path)
	}

	return &ScratchDirectory{
		kind: kind,
		path: path,
		lock: lock,
	}, nil
}

// Path returns the scratch directory location.
func (s *ScratchDirectory) Path() string {
	return s.path
}

// Close releases the lock and, for a process-owned temp directory,
// removes the directory and everything in it. An external path is
// never deleted.
func (s *ScratchDirectory) Close() error {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	if s.kind == scratchOwnedTemp {
		return os.RemoveAll(s.path)
	}
	return nil
}
