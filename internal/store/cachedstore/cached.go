package cachedstore

import (
	"context"

	"github.com/hapislab/csvpack/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store wraps another Store with caching.
type Store struct {
	underlying store.Store
	backend    Backend
}

// New creates a new cached store wrapping the given store.
func New(underlying store.Store, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// ReadObject reads an object, checking the cache first.
func (s *Store) ReadObject(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.backend.Get(key); ok {
		return data, nil
	}

	data, err := s.underlying.ReadObject(ctx, key)
	if err != nil {
		return nil, err
	}

	s.backend.Set(key, data)
	return data, nil
}

// WriteObject writes through to the underlying store and invalidates key.
func (s *Store) WriteObject(ctx context.Context, key string, data []byte) error {
	s.backend.Remove(key)
	return s.underlying.WriteObject(ctx, key, data)
}

// List is not cached.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.underlying.List(ctx, prefix)
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
