// Package memarchivefx provides an fx module for an in-memory archive.
// Useful for testing.
package memarchivefx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/publish"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/store"
	"github.com/hapislab/csvpack/internal/store/memstore"
)

// Module provides an in-memory store and a Publisher writing to it.
// Requires a *zap.Logger and a stats.Collector to be provided.
var Module = fx.Module("memarchive",
	fx.Provide(
		newMemStore,
		newPublisher,
	),
)

// Result holds the provided store under both its concrete and interface types.
type Result struct {
	fx.Out

	Store    store.Store
	MemStore *memstore.Store // Exposed for test setup
}

func newMemStore() Result {
	st := memstore.New()
	return Result{Store: st, MemStore: st}
}

func newPublisher(st store.Store, log *zap.Logger, c stats.Collector) *publish.Publisher {
	return publish.New(st,
		publish.WithStats(c),
		publish.WithLogger(log.Named("publish")),
	)
}
