// Package storeurl opens a store.Store from a location string.
package storeurl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/store"
	"github.com/hapislab/csvpack/internal/store/cachedstore"
	"github.com/hapislab/csvpack/internal/store/cachedstore/cachestrategy/lru"
	"github.com/hapislab/csvpack/internal/store/cachedstore/memory"
	"github.com/hapislab/csvpack/internal/store/diskstore"
	"github.com/hapislab/csvpack/internal/store/gcsstore"
	"github.com/hapislab/csvpack/internal/store/s3store"
)

// Location is a parsed store location.
type Location struct {
	Scheme string // "s3", "gs" or "file"
	Bucket string
	Prefix string
	Path   string // local directory for "file"
}

// Parse parses s3://bucket/prefix, gs://bucket/prefix or a local directory.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty store location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing store location: %w", err)
	}
	switch u.Scheme {
	case "s3", "gs":
		if u.Host == "" {
			return Location{}, fmt.Errorf("store location %q has no bucket", raw)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: store.NormalizePrefix(u.Path)}, nil
	case "file":
		return Location{Scheme: "file", Path: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// Open opens the store at raw.
func Open(ctx context.Context, raw string) (store.Store, error) {
	loc, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "s3":
		return s3store.New(ctx, loc.Bucket, s3store.WithPrefix(loc.Prefix))
	case "gs":
		return gcsstore.New(ctx, loc.Bucket, gcsstore.WithPrefix(loc.Prefix))
	default:
		return diskstore.New(loc.Path)
	}
}

// OpenCached opens the store at raw behind an LRU cache of capacity objects.
// Cache hits and misses are reported to collector, which may be nil.
func OpenCached(ctx context.Context, raw string, capacity int, collector stats.Collector) (*cachedstore.Store, error) {
	underlying, err := Open(ctx, raw)
	if err != nil {
		return nil, err
	}

	strategy, err := lru.New(capacity)
	if err != nil {
		underlying.Close()
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return cachedstore.New(underlying, memory.New(strategy, collector)), nil
}
