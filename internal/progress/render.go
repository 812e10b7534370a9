package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultWidth is the bar width used by the command line tools.
const DefaultWidth = 50

// Render returns a bar of width cells with floor(completed*width/total)
// of them filled with '#' and the rest with spaces. completed is clamped
// to [0, total]. Render returns the empty string when total <= 0.
func Render(completed, total int64, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	completed = max(0, min(completed, total))
	filled := int(completed * int64(width) / total)
	return strings.Repeat("#", filled) + strings.Repeat(" ", width-filled)
}

// Line formats a full progress line: "[bar] completed/total processing...".
// A run with nothing to do reports "no items".
func Line(s Snapshot, width int) string {
	if s.Total <= 0 {
		return "no items"
	}
	line := fmt.Sprintf("[%s] %d/%d processing...", Render(s.Completed, s.Total, width), s.Completed, s.Total)
	if s.Failed > 0 {
		line += fmt.Sprintf(" (%d failed)", s.Failed)
	}
	return line
}

// Reporter redraws a progress line in place on a terminal.
// It is safe for concurrent use.
type Reporter struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	drawn bool
}

// NewReporter creates a Reporter writing to w with the given bar width.
func NewReporter(w io.Writer, width int) *Reporter {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Reporter{w: w, width: width}
}

// Update redraws the line for s. It has the signature of Func.
func (r *Reporter) Update(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "\r%s", Line(s, r.width))
	r.drawn = true
}

// Finish ends the progress line with a summary.
func (r *Reporter) Finish(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintf(r.w, "[Done] %d/%d files in %s", s.Completed, s.Total, FormatDuration(s.Elapsed))
	if s.Failed > 0 {
		fmt.Fprintf(r.w, ", %d failed", s.Failed)
	}
	fmt.Fprintln(r.w)
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes as human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
