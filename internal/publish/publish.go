// Package publish uploads encoded records to object storage and reads
// them back.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/record"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/store"
	"github.com/hapislab/csvpack/internal/walker"
)

// Publisher uploads the .bin records of a directory tree to a store.
type Publisher struct {
	store    store.Store
	workers  int
	limiter  *rate.Limiter
	progress progress.Func
	stats    stats.Collector
	logger   *zap.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithWorkers sets the number of concurrent uploads.
func WithWorkers(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRate limits uploads to perSecond objects per second.
// Zero or negative means unlimited.
func WithRate(perSecond float64) Option {
	return func(p *Publisher) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn progress.Func) Option {
	return func(p *Publisher) { p.progress = fn }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(p *Publisher) { p.stats = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher writing to st.
func New(st store.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   st,
		workers: runtime.NumCPU(),
		limiter: rate.NewLimiter(rate.Inf, 0),
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push uploads every .bin record under dir, keyed by its slash-separated
// path relative to dir, then writes the manifest. Each record is decoded
// before upload; a record that fails to decode aborts the push.
func (p *Publisher) Push(ctx context.Context, dir string) (*Manifest, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	var files []string
	err = walker.Walk(ctx, root, walker.MatchExt(".bin"), func(_ string, level []string) error {
		files = append(files, level...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	counter := progress.NewCounter()
	counter.SetTotal(int64(len(files)))
	p.report(counter.Snapshot())
	p.logger.Info("push started", zap.String("dir", root), zap.Int("objects", len(files)))

	var mu sync.Mutex
	objects := make([]Object, 0, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, path := range files {
		g.Go(func() error {
			obj, err := p.upload(gctx, root, path)
			if err != nil {
				p.report(counter.Fail())
				return err
			}
			mu.Lock()
			objects = append(objects, obj)
			mu.Unlock()
			p.report(counter.Done())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	m := &Manifest{
		Version:     ManifestVersion,
		PublishedAt: time.Now().UTC(),
		Objects:     objects,
	}
	if err := WriteManifest(ctx, p.store, m); err != nil {
		return nil, err
	}

	p.logger.Info("push finished",
		zap.Int("objects", len(objects)),
		zap.Duration("elapsed", counter.Snapshot().Elapsed),
	)
	return m, nil
}

func (p *Publisher) upload(ctx context.Context, root, path string) (Object, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Object{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Object{}, err
	}
	key := filepath.ToSlash(rel)

	data, err := os.ReadFile(path)
	if err != nil {
		return Object{}, walker.Classify(path, err)
	}
	payload, info, err := record.DecodeInfo(bytes.NewReader(data))
	if err != nil {
		return Object{}, fmt.Errorf("verifying %s: %w", key, err)
	}

	if err := p.store.WriteObject(ctx, key, data); err != nil {
		return Object{}, fmt.Errorf("uploading %s: %w", key, err)
	}
	p.stats.IncCounter(stats.MetricObjectsUploaded, 1)
	p.stats.IncCounter(stats.MetricBytesWritten, int64(len(data)))
	p.logger.Debug("object uploaded", zap.String("key", key), zap.Int("bytes", len(data)))

	return Object{
		Key:         key,
		Size:        int64(len(data)),
		PayloadSize: int64(len(payload)),
		Codec:       info.Codec,
		Format:      string(info.Format),
		Digest:      digest(data),
	}, nil
}

func (p *Publisher) report(s progress.Snapshot) {
	if p.progress != nil {
		p.progress(s)
	}
}

// Fetch reads the record stored under key and returns its decoded payload.
func Fetch(ctx context.Context, st store.Store, key string) ([]byte, error) {
	data, err := st.ReadObject(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
		}
		return nil, err
	}
	payload, err := record.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return payload, nil
}
