// Package progress tracks batch job counts and renders them as a
// terminal progress bar.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter tracks job completion using atomic counters.
// A Counter belongs to one batch run; SetTotal is called once before any
// job starts. Completed plus failed never exceeds Total: a job finishing
// beyond the announced total raises it.
type Counter struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	startTime time.Time

	// mu orders total growth before the increment it covers.
	mu sync.Mutex
}

// NewCounter creates a Counter with startTime set to now.
func NewCounter() *Counter {
	return &Counter{startTime: time.Now()}
}

// SetTotal records the number of jobs the run will dispatch.
func (c *Counter) SetTotal(n int64) {
	c.mu.Lock()
	c.total.Store(n)
	c.mu.Unlock()
}

// Done records a successful job and returns the resulting snapshot.
func (c *Counter) Done() Snapshot {
	return c.finish(&c.completed)
}

// Fail records a failed job and returns the resulting snapshot.
func (c *Counter) Fail() Snapshot {
	return c.finish(&c.failed)
}

func (c *Counter) finish(n *atomic.Int64) Snapshot {
	c.mu.Lock()
	if done := c.completed.Load() + c.failed.Load() + 1; done > c.total.Load() {
		c.total.Store(done)
	}
	n.Add(1)
	c.mu.Unlock()
	return c.Snapshot()
}

// Snapshot is a point-in-time read of the counters.
type Snapshot struct {
	Total     int64
	Completed int64
	Failed    int64
	Elapsed   time.Duration
}

// Snapshot returns a point-in-time read of all counters.
func (c *Counter) Snapshot() Snapshot {
	// Total is read last so it covers the counts read before it.
	completed := c.completed.Load()
	failed := c.failed.Load()
	return Snapshot{
		Total:     c.total.Load(),
		Completed: completed,
		Failed:    failed,
		Elapsed:   time.Since(c.startTime),
	}
}

// Remaining returns the number of jobs neither completed nor failed.
func (s Snapshot) Remaining() int64 {
	return s.Total - s.Completed - s.Failed
}

// Func is called with a fresh snapshot after every finished job.
type Func func(Snapshot)
