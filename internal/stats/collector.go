// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout csvpack.
const (
	// Batch metrics.
	MetricFilesProcessed = "csvpack_files_processed_total"
	MetricFilesFailed    = "csvpack_files_failed_total"
	MetricFilesSkipped   = "csvpack_files_skipped_total"
	MetricBytesRead      = "csvpack_bytes_read_total"
	MetricBytesWritten   = "csvpack_bytes_written_total"
	MetricJobDuration    = "csvpack_job_duration_seconds"
	MetricJobsTotal      = "csvpack_jobs_total"

	// Publish metrics.
	MetricObjectsUploaded = "csvpack_objects_uploaded_total"
	MetricObjectsFetched  = "csvpack_objects_fetched_total"

	// Cache metrics.
	MetricCacheHits   = "csvpack_cache_hits_total"
	MetricCacheMisses = "csvpack_cache_misses_total"
	MetricCacheSize   = "csvpack_cache_size"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
