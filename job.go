package csvpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/record"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/walker"
)

// convert runs one file through the direction's codec stage and accounts
// for the outcome.
func (r *Runner) convert(ctx context.Context, dir Direction, path string, counter *progress.Counter) Result {
	start := time.Now()
	res := Result{Path: path}

	var err error
	if err = ctx.Err(); err == nil {
		switch dir {
		case Compress:
			res.Output, res.BytesIn, res.BytesOut, err = r.compressFile(path)
		case Decompress:
			res.Output, res.BytesIn, res.BytesOut, err = r.decompressFile(path)
		case Verify:
			res.BytesIn, res.BytesOut, err = verifyFile(path)
		default:
			err = fmt.Errorf("unknown direction %v", dir)
		}
	}
	res.Elapsed = time.Since(start)

	var snap progress.Snapshot
	if err != nil {
		res.Err = &JobError{Path: path, Op: dir.String(), Err: err}
		res.Error = res.Err.Error()
		snap = counter.Fail()
		r.stats.IncCounter(stats.MetricFilesFailed, 1)
		r.logger.Warn("file failed", zap.String("path", path), zap.Error(err))
	} else {
		snap = counter.Done()
		r.stats.IncCounter(stats.MetricFilesProcessed, 1)
		r.stats.IncCounter(stats.MetricBytesRead, res.BytesIn)
		r.stats.IncCounter(stats.MetricBytesWritten, res.BytesOut)
		r.logger.Debug("file done",
			zap.String("path", path),
			zap.String("output", res.Output),
			zap.Int64("bytesIn", res.BytesIn),
			zap.Int64("bytesOut", res.BytesOut),
			zap.Duration("elapsed", res.Elapsed),
		)
	}
	r.stats.ObserveHistogram(stats.MetricJobDuration, res.Elapsed.Seconds())
	r.reportProgress(snap)

	return res
}

func (r *Runner) compressFile(path string) (string, int64, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, 0, fileError(path, err)
	}

	output := swapExt(path, ExtBin)
	written, err := writeAtomic(output, func(w io.Writer) error {
		return record.Encode(w, r.codec, data)
	})
	if err != nil {
		return "", 0, 0, err
	}

	if err := r.removeSource(path); err != nil {
		return output, int64(len(data)), written, err
	}
	return output, int64(len(data)), written, nil
}

func (r *Runner) decompressFile(path string) (string, int64, int64, error) {
	payload, read, err := decodeFile(path)
	if err != nil {
		return "", 0, 0, err
	}

	output := swapExt(path, ExtCSV)
	written, err := writeAtomic(output, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	})
	if err != nil {
		return "", 0, 0, err
	}

	if err := r.removeSource(path); err != nil {
		return output, read, written, err
	}
	return output, read, written, nil
}

func verifyFile(path string) (int64, int64, error) {
	payload, read, err := decodeFile(path)
	if err != nil {
		return 0, 0, err
	}
	return read, int64(len(payload)), nil
}

func decodeFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fileError(path, err)
	}
	defer f.Close()

	cr := &countingReader{r: f}
	payload, err := record.Decode(cr)
	if err != nil {
		return nil, cr.n, err
	}
	return payload, cr.n, nil
}

func (r *Runner) removeSource(path string) error {
	if r.keepSource {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing source: %w", fileError(path, err))
	}
	return nil
}

// writeAtomic writes dst through a temporary sibling file that is renamed
// into place only after fill succeeds and the data is synced. An existing
// dst is replaced. It returns the number of bytes written.
func writeAtomic(dst string, fill func(w io.Writer) error) (int64, error) {
	dir, base := filepath.Split(dst)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.csvpack-tmp", base, uuid.New().String()[:8]))

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", fileError(tmp, err))
	}

	cw := &countingWriter{w: f}
	err = fill(cw)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("writing %s: %w", dst, err)
	}
	return cw.n, nil
}

// swapExt replaces the extension of path with ext.
func swapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// fileError attaches csvpack's sentinel to permission and not-found errors.
func fileError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return walker.Classify(path, err)
	}
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
