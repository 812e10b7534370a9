// Package csvpackfx provides an fx module for a csvpack Runner.
package csvpackfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/stats/logger"
)

// Config holds configuration for the Runner.
type Config struct {
	// Workers is the number of files converted concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// Codec names the compression for new records: gzip, zstd or none.
	// Default is gzip.
	Codec string

	// KeepGoing processes every file even after failures.
	KeepGoing bool

	// KeepSource leaves input files in place.
	KeepSource bool

	// LockDir holds the per-directory lock files. Default is os.TempDir().
	LockDir string
}

// Module provides a *csvpack.Runner and a logging stats.Collector.
// Requires a Config and a *zap.Logger to be provided.
var Module = fx.Module("csvpack",
	fx.Provide(
		newStatsCollector,
		newRunner,
	),
)

// CollectorResult exposes the collector both as itself and as the interface.
type CollectorResult struct {
	fx.Out

	Logger    *logger.Collector
	Collector stats.Collector
}

func newStatsCollector(log *zap.Logger, lc fx.Lifecycle) CollectorResult {
	c := logger.New(log.Named("csvpack.stats"))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			c.LogTotals("csvpack totals")
			return nil
		},
	})
	return CollectorResult{Logger: c, Collector: c}
}

// Params holds dependencies for creating the Runner.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
}

// Result holds the provided Runner.
type Result struct {
	fx.Out

	Runner *csvpack.Runner
}

func newRunner(p Params) (Result, error) {
	opts := []csvpack.Option{
		csvpack.WithKeepSource(p.Config.KeepSource),
		csvpack.WithStats(p.Collector),
		csvpack.WithLogger(p.Logger.Named("csvpack")),
	}
	if p.Config.Workers > 0 {
		opts = append(opts, csvpack.WithWorkers(p.Config.Workers))
	}
	if p.Config.Codec != "" {
		c, err := csvpack.CodecByName(p.Config.Codec)
		if err != nil {
			return Result{}, err
		}
		opts = append(opts, csvpack.WithCodec(c))
	}
	if p.Config.KeepGoing {
		opts = append(opts, csvpack.WithFailurePolicy(csvpack.KeepGoing))
	}
	if p.Config.LockDir != "" {
		opts = append(opts, csvpack.WithLockDir(p.Config.LockDir))
	}

	runner, err := csvpack.New(opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Runner: runner}, nil
}
