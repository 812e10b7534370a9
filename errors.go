package csvpack

import (
	"errors"
	"fmt"

	"github.com/hapislab/csvpack/internal/record"
	"github.com/hapislab/csvpack/internal/walker"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates a target path that does not exist.
	ErrNotFound = walker.ErrNotFound

	// ErrPermission indicates a directory or file that cannot be read or written.
	ErrPermission = walker.ErrPermission

	// ErrDecode indicates a corrupt or foreign-format .bin file.
	ErrDecode = record.ErrDecode

	// ErrNoTargets indicates Run was called without any paths.
	ErrNoTargets = errors.New("csvpack: no paths given")

	// ErrInvalidWorkers indicates a worker count below one.
	ErrInvalidWorkers = errors.New("csvpack: workers must be at least 1")

	// ErrLocked indicates another run holds the lock on a target directory.
	ErrLocked = errors.New("csvpack: directory is being processed by another run")

	// ErrJobsFailed is returned by a KeepGoing run in which any file failed.
	ErrJobsFailed = errors.New("csvpack: some files failed")
)

// JobError describes the failure of a single file.
type JobError struct {
	Path string
	Op   string
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
