package csvpack

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/codec"
	"github.com/hapislab/csvpack/internal/codec/gzipcodec"
	"github.com/hapislab/csvpack/internal/codec/noopcodec"
	"github.com/hapislab/csvpack/internal/codec/zstdcodec"
	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/stats"
)

// Option configures a Runner.
type Option interface {
	apply(*options)
}

// options holds the runner configuration.
type options struct {
	workers    int
	codec      codec.Codec
	policy     FailurePolicy
	keepSource bool
	progress   progress.Func
	stats      stats.Collector
	logger     *zap.Logger
	lockDir    string
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		workers: runtime.NumCPU(),
		codec:   gzipcodec.New(),
		policy:  FailFast,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
		lockDir: os.TempDir(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithWorkers sets the number of files converted concurrently.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) {
		o.workers = n
	})
}

// WithCodec sets the compression used when writing .bin files.
// Default is gzip. Reading always detects the codec.
func WithCodec(c codec.Codec) Option {
	return optionFunc(func(o *options) {
		o.codec = c
	})
}

// WithFailurePolicy sets what happens after a file fails. Default is FailFast.
func WithFailurePolicy(p FailurePolicy) Option {
	return optionFunc(func(o *options) {
		o.policy = p
	})
}

// WithKeepSource leaves source files in place after conversion.
func WithKeepSource(keep bool) Option {
	return optionFunc(func(o *options) {
		o.keepSource = keep
	})
}

// WithProgress sets a callback invoked once when a run starts and after
// every finished file. It may be called from several goroutines at once.
func WithProgress(fn progress.Func) Option {
	return optionFunc(func(o *options) {
		o.progress = fn
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithLockDir sets where per-directory lock files are created.
// Default is os.TempDir().
func WithLockDir(dir string) Option {
	return optionFunc(func(o *options) {
		o.lockDir = dir
	})
}

// CodecByName returns the codec for a command-line name: gzip, zstd or none.
func CodecByName(name string) (codec.Codec, error) {
	switch name {
	case "gzip", "gz":
		return gzipcodec.New(), nil
	case "zstd", "zst":
		return zstdcodec.New(), nil
	case "none":
		return noopcodec.New(), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
