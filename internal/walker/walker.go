// Package walker enumerates the files a batch run converts. It visits a tree
// depth-first and hands each directory's matching files to the caller only
// after every subdirectory below it has been handled.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound indicates a root path that does not exist.
	ErrNotFound = errors.New("csvpack: path not found")

	// ErrPermission indicates a directory or file that cannot be accessed.
	ErrPermission = errors.New("csvpack: permission denied")
)

// Filter reports whether a file path should be kept.
type Filter func(path string) bool

// MatchExt keeps files whose extension is exactly ext (including the dot).
func MatchExt(ext string) Filter {
	return func(path string) bool {
		return filepath.Ext(path) == ext
	}
}

// LevelFunc receives the matching files of one directory. files holds
// absolute paths and may be empty.
type LevelFunc func(dir string, files []string) error

// Walk visits root recursively. For every directory it first walks each
// subdirectory to completion, then calls fn with the directory's own files
// that pass f. An error from fn stops the walk and is returned unchanged.
//
// Symbolic links are followed. A linked directory is walked at most once per
// call, keyed by its resolved path, so link cycles terminate. Dangling links
// are ignored.
func Walk(ctx context.Context, root string, f Filter, fn LevelFunc) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Classify(abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Classify(abs, err)
	}
	w := &walk{f: f, fn: fn, visited: map[string]bool{resolved: true}}
	return w.dir(ctx, abs, resolved)
}

type walk struct {
	f       Filter
	fn      LevelFunc
	visited map[string]bool
}

// dir walks path, whose symlink-free location is resolved.
func (w *walk) dir(ctx context.Context, path, resolved string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Classify(path, err)
	}

	var files []string
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		childResolved := filepath.Join(resolved, entry.Name())
		mode := entry.Type()

		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(child)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return Classify(child, err)
			}
			if childResolved, err = filepath.EvalSymlinks(child); err != nil {
				return Classify(child, err)
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if w.visited[childResolved] {
				continue
			}
			w.visited[childResolved] = true
			if err := w.dir(ctx, child, childResolved); err != nil {
				return err
			}
		case mode.IsRegular() && w.f(child):
			files = append(files, child)
		}
	}

	return w.fn(path, files)
}

// Count returns the number of files under root that pass f.
func Count(ctx context.Context, root string, f Filter) (int, error) {
	n := 0
	err := Walk(ctx, root, f, func(_ string, files []string) error {
		n += len(files)
		return nil
	})
	return n, err
}

// Classify maps filesystem errors onto ErrNotFound and ErrPermission.
func Classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
	default:
		return fmt.Errorf("reading %s: %w", path, err)
	}
}
