// Package archivefx provides an fx module for publishing records to an
// object store.
package archivefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/publish"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/store"
	"github.com/hapislab/csvpack/internal/store/storeurl"
)

// Config holds configuration for the archive.
type Config struct {
	// URL is s3://bucket/prefix, gs://bucket/prefix or a local directory.
	URL string

	// CacheSize is the number of objects to cache in memory.
	// Default is 100.
	CacheSize int

	// Workers is the number of concurrent uploads. Zero means runtime.NumCPU().
	Workers int

	// Rate limits uploads per second. Zero means unlimited.
	Rate float64
}

// Module provides a cached store.Store and a *publish.Publisher.
// Requires a Config, a *zap.Logger and a stats.Collector to be provided.
var Module = fx.Module("archive",
	fx.Provide(
		newStore,
		newPublisher,
	),
)

// Params holds dependencies for opening the store.
type Params struct {
	fx.In

	Config    Config
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided store.
type Result struct {
	fx.Out

	Store store.Store
}

func newStore(p Params) (Result, error) {
	cacheSize := p.Config.CacheSize
	if cacheSize <= 0 {
		cacheSize = 100
	}

	st, err := storeurl.OpenCached(context.Background(), p.Config.URL, cacheSize, p.Collector)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})

	return Result{Store: st}, nil
}

func newPublisher(cfg Config, st store.Store, log *zap.Logger, c stats.Collector) *publish.Publisher {
	return publish.New(st,
		publish.WithWorkers(cfg.Workers),
		publish.WithRate(cfg.Rate),
		publish.WithStats(c),
		publish.WithLogger(log.Named("publish")),
	)
}
