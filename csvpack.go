// Package csvpack converts trees of measurement CSV files to compact,
// checksummed .bin records and back.
//
// Example usage:
//
//	runner, err := csvpack.New(
//	    csvpack.WithWorkers(8),
//	    csvpack.WithFailurePolicy(csvpack.KeepGoing),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := runner.Compress(ctx, []string{"/data/2021-02-19_14-03-11"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d files, mean ratio %.2f\n", report.Completed, report.Summary().MeanRatio)
//
// Directories are processed bottom-up: every subdirectory is drained before
// the files of its parent are dispatched to the worker pool.
package csvpack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/codec"
	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/walker"
)

// Runner converts files between .csv and .bin.
// A Runner is safe for concurrent use; each Run owns its own counters.
type Runner struct {
	workers    int
	codec      codec.Codec
	policy     FailurePolicy
	keepSource bool
	progress   progress.Func
	stats      stats.Collector
	logger     *zap.Logger
	lockDir    string
}

// New creates a new Runner with the given options.
func New(opts ...Option) (*Runner, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if cfg.codec == nil {
		return nil, errors.New("csvpack: nil codec")
	}

	r := &Runner{
		workers:    cfg.workers,
		codec:      cfg.codec,
		policy:     cfg.policy,
		keepSource: cfg.keepSource,
		progress:   cfg.progress,
		stats:      cfg.stats,
		logger:     cfg.logger,
		lockDir:    cfg.lockDir,
	}

	r.logger.Debug("runner initialized",
		zap.Int("workers", r.workers),
		zap.String("codec", r.codec.Name()),
		zap.Stringer("policy", r.policy),
	)

	return r, nil
}

// Compress converts every .csv under paths to a .bin record.
func (r *Runner) Compress(ctx context.Context, paths []string) (*Report, error) {
	return r.Run(ctx, Compress, paths)
}

// Decompress converts every .bin under paths back to .csv.
func (r *Runner) Decompress(ctx context.Context, paths []string) (*Report, error) {
	return r.Run(ctx, Decompress, paths)
}

// Verify decodes every .bin under paths without changing anything.
func (r *Runner) Verify(ctx context.Context, paths []string) (*Report, error) {
	return r.Run(ctx, Verify, paths)
}

// target is one resolved command-line path.
type target struct {
	path string
	dir  bool
}

// Run applies dir to every matching file under paths. Each path is a file or
// a directory; files whose extension does not match dir.InputExt() are
// skipped without error.
//
// A missing path fails with ErrNotFound and an unreadable directory with
// ErrPermission; both abort the run. File failures follow the runner's
// FailurePolicy. The returned Report is non-nil whenever files were
// dispatched, even when an error is returned.
func (r *Runner) Run(ctx context.Context, dir Direction, paths []string) (*Report, error) {
	if len(paths) == 0 {
		return nil, ErrNoTargets
	}

	keep := walker.MatchExt(dir.InputExt())
	targets, err := r.resolve(dir, paths)
	if err != nil {
		return nil, err
	}

	if dir != Verify {
		var dirs []string
		for _, t := range targets {
			if t.dir {
				dirs = append(dirs, t.path)
			}
		}
		unlock, err := lockDirs(r.lockDir, dirs)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	total, err := count(ctx, keep, targets)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Version:   ReportVersion,
		RunID:     uuid.NewString(),
		Direction: dir,
		Policy:    r.policy.String(),
		StartedAt: time.Now(),
		Total:     total,
	}
	if dir == Compress {
		report.Codec = r.codec.Name()
	}

	log := r.logger.With(zap.String("runID", report.RunID), zap.Stringer("direction", dir))
	log.Info("run started", zap.Int64("total", total), zap.Int("targets", len(targets)))

	counter := progress.NewCounter()
	counter.SetTotal(total)
	r.stats.SetGauge(stats.MetricJobsTotal, total)
	r.reportProgress(counter.Snapshot())

	p := newPool(ctx, r.workers, r.policy, func(ctx context.Context, path string) Result {
		return r.convert(ctx, dir, path, counter)
	})

	var walkErr error
	for _, t := range targets {
		if t.dir {
			walkErr = walker.Walk(ctx, t.path, keep, func(d string, files []string) error {
				if len(files) > 0 {
					log.Debug("dispatching directory", zap.String("dir", d), zap.Int("files", len(files)))
				}
				return p.dispatch(files)
			})
		} else {
			walkErr = p.dispatch([]string{t.path})
		}
		if walkErr != nil {
			break
		}
	}

	results, jobErr := p.close()

	snap := counter.Snapshot()
	report.Results = results
	report.Elapsed = snap.Elapsed
	report.Completed = snap.Completed
	report.Failed = snap.Failed
	report.Skipped = snap.Remaining()
	if report.Skipped > 0 {
		r.stats.IncCounter(stats.MetricFilesSkipped, report.Skipped)
	}

	log.Info("run finished",
		zap.Int64("completed", report.Completed),
		zap.Int64("failed", report.Failed),
		zap.Int64("skipped", report.Skipped),
		zap.Duration("elapsed", report.Elapsed),
	)

	switch {
	case jobErr != nil:
		return report, jobErr
	case walkErr != nil && !isCancellation(walkErr):
		return report, walkErr
	case ctx.Err() != nil:
		return report, ctx.Err()
	case report.Failed > 0:
		return report, fmt.Errorf("%w: %d of %d", ErrJobsFailed, report.Failed, report.Total)
	}
	return report, nil
}

// resolve stats every path and keeps the directories and the files whose
// extension matches dir.
func (r *Runner) resolve(dir Direction, paths []string) ([]target, error) {
	keep := walker.MatchExt(dir.InputExt())
	seen := make(map[string]bool, len(paths))

	var targets []target
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		if err != nil {
			return nil, walker.Classify(abs, err)
		}

		switch {
		case info.IsDir():
			targets = append(targets, target{path: abs, dir: true})
		case keep(abs):
			targets = append(targets, target{path: abs})
		default:
			r.logger.Debug("skipping file", zap.String("path", abs), zap.String("want", dir.InputExt()))
		}
	}
	return targets, nil
}

// count returns how many files the run will dispatch for targets.
func count(ctx context.Context, keep walker.Filter, targets []target) (int64, error) {
	var total int64
	for _, t := range targets {
		if !t.dir {
			total++
			continue
		}
		n, err := walker.Count(ctx, t.path, keep)
		if err != nil {
			return 0, err
		}
		total += int64(n)
	}
	return total, nil
}

func (r *Runner) reportProgress(s progress.Snapshot) {
	if r.progress != nil {
		r.progress(s)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
