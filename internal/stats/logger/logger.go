// Package logger provides a zap-based stats collector that logs metrics.
package logger

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/stats"
)

// Collector implements stats.Collector by logging metrics via zap.
// It keeps running counter totals so a run can log a final tally.
type Collector struct {
	logger *zap.Logger
	totals sync.Map // string -> *atomic.Int64
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new logger-based collector.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// IncCounter logs a counter increment along with the counter's new total.
func (c *Collector) IncCounter(name string, delta int64) {
	v, _ := c.totals.LoadOrStore(name, new(atomic.Int64))
	total := v.(*atomic.Int64).Add(delta)
	c.logger.Debug("counter",
		zap.String("metric", name),
		zap.Int64("delta", delta),
		zap.Int64("total", total),
	)
}

// SetGauge logs a gauge value.
func (c *Collector) SetGauge(name string, value int64) {
	c.logger.Debug("gauge",
		zap.String("metric", name),
		zap.Int64("value", value),
	)
}

// ObserveHistogram logs a histogram observation.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.logger.Debug("histogram",
		zap.String("metric", name),
		zap.Float64("value", value),
	)
}

// Total returns the accumulated value of a counter.
func (c *Collector) Total(name string) int64 {
	v, ok := c.totals.Load(name)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// LogTotals writes every counter total as one info line.
func (c *Collector) LogTotals(msg string) {
	var names []string
	c.totals.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)

	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, zap.Int64(name, c.Total(name)))
	}
	c.logger.Info(msg, fields...)
}
