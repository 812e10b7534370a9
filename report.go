package csvpack

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ReportVersion is the version of the JSON report layout.
const ReportVersion = 1

// Result is the outcome of one file.
type Result struct {
	Path     string        `json:"path"`
	Output   string        `json:"output,omitempty"`
	BytesIn  int64         `json:"bytes_in"`
	BytesOut int64         `json:"bytes_out"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`

	// Err is the failure, if any. It is not serialized; Error carries its text.
	Err error `json:"-"`
}

// OK reports whether the file was converted successfully.
func (r Result) OK() bool {
	return !r.Skipped && r.Err == nil && r.Error == ""
}

// Report summarizes one run.
type Report struct {
	Version   int           `json:"version"`
	RunID     string        `json:"run_id"`
	Direction Direction     `json:"direction"`
	Codec     string        `json:"codec,omitempty"`
	Policy    string        `json:"policy"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`

	Results []Result `json:"results"`
}

// Failures returns the results of files that failed.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Skipped && !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Summary aggregates size and ratio statistics over successful files.
type Summary struct {
	Files    int   `json:"files"`
	BytesIn  int64 `json:"bytes_in"`
	BytesOut int64 `json:"bytes_out"`

	// Ratios are output size over input size, per file.
	MeanRatio   float64 `json:"mean_ratio"`
	StdDevRatio float64 `json:"stddev_ratio"`
	MedianRatio float64 `json:"median_ratio"`

	MeanSeconds float64 `json:"mean_seconds"`
}

// Summary computes statistics over the report's successful results.
// Files with no input bytes are counted but excluded from the ratios.
func (r *Report) Summary() Summary {
	var s Summary
	var ratios, seconds []float64
	for _, res := range r.Results {
		if !res.OK() {
			continue
		}
		s.Files++
		s.BytesIn += res.BytesIn
		s.BytesOut += res.BytesOut
		seconds = append(seconds, res.Elapsed.Seconds())
		if res.BytesIn > 0 {
			ratios = append(ratios, float64(res.BytesOut)/float64(res.BytesIn))
		}
	}

	if len(seconds) > 0 {
		s.MeanSeconds = stat.Mean(seconds, nil)
	}
	switch len(ratios) {
	case 0:
	case 1:
		s.MeanRatio = ratios[0]
		s.MedianRatio = ratios[0]
	default:
		s.MeanRatio, s.StdDevRatio = stat.MeanStdDev(ratios, nil)
		sort.Float64s(ratios)
		s.MedianRatio = stat.Quantile(0.5, stat.Empirical, ratios, nil)
	}
	return s
}

// WriteReport writes the report to path as indented JSON.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// ReadReport reads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
