package csvpack

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// jobFunc converts one file.
type jobFunc func(ctx context.Context, path string) Result

type job struct {
	path string
	wg   *sync.WaitGroup
}

// pool is the bounded worker pool shared by every directory level of a run.
// Levels are handed to dispatch one at a time; dispatch returns once every
// file of the level has a result.
//
// Under FailFast a failing worker returns its error, which cancels the
// group context: queued files are then recorded as skipped instead of run.
type pool struct {
	g        *errgroup.Group
	ctx      context.Context
	jobs     chan job
	run      jobFunc
	failFast bool

	mu      sync.Mutex
	results []Result
}

func newPool(ctx context.Context, workers int, policy FailurePolicy, run jobFunc) *pool {
	g, gctx := errgroup.WithContext(ctx)
	p := &pool{
		g:        g,
		ctx:      gctx,
		jobs:     make(chan job),
		run:      run,
		failFast: policy == FailFast,
	}
	for range workers {
		g.Go(p.work)
	}
	return p
}

func (p *pool) work() error {
	for j := range p.jobs {
		if p.ctx.Err() != nil {
			p.record(Result{Path: j.path, Skipped: true})
			j.wg.Done()
			continue
		}

		res := p.run(p.ctx, j.path)
		p.record(res)
		j.wg.Done()

		if res.Err != nil && p.failFast {
			return res.Err
		}
	}
	return nil
}

// dispatch runs files on the pool and waits for all of them. It returns
// the cause of cancellation if the run was aborted before or during the level.
func (p *pool) dispatch(files []string) error {
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		select {
		case p.jobs <- job{path: path, wg: &wg}:
		case <-p.ctx.Done():
			wg.Done()
			for _, rest := range files[i:] {
				p.record(Result{Path: rest, Skipped: true})
			}
			wg.Wait()
			return context.Cause(p.ctx)
		}
	}
	wg.Wait()

	if p.ctx.Err() != nil {
		return context.Cause(p.ctx)
	}
	return nil
}

// close stops the workers and returns every result together with the first
// job error under FailFast.
func (p *pool) close() ([]Result, error) {
	close(p.jobs)
	err := p.g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results, err
}

func (p *pool) record(r Result) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}
