// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hapislab/csvpack/internal/stats"
)

// durationBuckets spans 1ms to ~4min, covering tiny CSVs through
// multi-hundred-megabyte oscilloscope captures.
var durationBuckets = prometheus.ExponentialBuckets(0.001, 4, 10)

// help describes the metrics csvpack emits. Unknown names fall back to
// using the name itself.
var help = map[string]string{
	stats.MetricFilesProcessed:  "Files converted successfully.",
	stats.MetricFilesFailed:     "Files whose conversion failed.",
	stats.MetricFilesSkipped:    "Files not attempted because the run aborted.",
	stats.MetricBytesRead:       "Bytes read from source files.",
	stats.MetricBytesWritten:    "Bytes written to output files.",
	stats.MetricJobDuration:     "Time spent converting one file.",
	stats.MetricJobsTotal:       "Files scheduled in the current run.",
	stats.MetricObjectsUploaded: "Encoded records uploaded to a store.",
	stats.MetricObjectsFetched:  "Encoded records fetched from a store.",
	stats.MetricCacheHits:       "Record cache hits.",
	stats.MetricCacheMisses:     "Record cache misses.",
	stats.MetricCacheSize:       "Records held in the cache.",
}

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpFor(name)})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpFor(name)})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: durationBuckets,
		})
	})
	histogram.Observe(value)
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// getOrCreate returns the metric registered under name, creating and
// registering it on first use. A metric already registered elsewhere with
// the same name is adopted.
func getOrCreate[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(M); ok {
				metrics[name] = existing
				return existing
			}
		}
		// Registration failed but the metric still works unexported.
	}
	metrics[name] = m
	return m
}
