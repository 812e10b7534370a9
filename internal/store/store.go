// Package store defines the object storage interface records are
// published to.
package store

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist in the store.
var ErrNotFound = errors.New("store: object not found")

// Store defines the interface for storage backends.
// Keys are slash-separated and relative to the store's root or prefix.
type Store interface {
	// ReadObject reads the raw bytes of the object at key.
	ReadObject(ctx context.Context, key string) ([]byte, error)

	// WriteObject creates or replaces the object at key.
	WriteObject(ctx context.Context, key string, data []byte) error

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// CleanKey normalizes key to a relative slash path. It returns "" for keys
// that would escape the store root.
func CleanKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return ""
	}
	return key
}

// NormalizePrefix returns prefix with exactly one trailing slash, or ""
// for an empty prefix.
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
