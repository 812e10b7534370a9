package csvpack

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"github.com/hapislab/csvpack/internal/codec/zstdcodec"
	"github.com/hapislab/csvpack/internal/progress"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

// listFiles returns every regular file under root as slash-separated
// relative paths, sorted.
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
	sort.Strings(out)
	return out
}

func newRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithLockDir(t.TempDir())}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestNew_InvalidWorkers(t *testing.T) {
	_, err := New(WithWorkers(0))
	if !errors.Is(err, ErrInvalidWorkers) {
		t.Errorf("New() error = %v, want ErrInvalidWorkers", err)
	}
}

func TestRun_NoTargets(t *testing.T) {
	r := newRunner(t)
	if _, err := r.Compress(context.Background(), nil); !errors.Is(err, ErrNoTargets) {
		t.Errorf("Compress() error = %v, want ErrNoTargets", err)
	}
}

func TestRun_CompressThenDecompress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "1,2,3")
	writeFile(t, filepath.Join(dir, "b.csv"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "keep me")

	r := newRunner(t)
	ctx := context.Background()

	report, err := r.Compress(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if got, want := listFiles(t, dir), []string{"a.bin", "b.bin", "notes.txt"}; !equal(got, want) {
		t.Errorf("after compress files = %v, want %v", got, want)
	}
	if report.Total != 2 || report.Completed != 2 || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("report counts = %d/%d/%d/%d, want 2/2/0/0",
			report.Total, report.Completed, report.Failed, report.Skipped)
	}
	if report.Codec != "gzip" {
		t.Errorf("report.Codec = %q, want gzip", report.Codec)
	}

	if _, err := r.Decompress(ctx, []string{dir}); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if got, want := listFiles(t, dir), []string{"a.csv", "b.csv", "notes.txt"}; !equal(got, want) {
		t.Errorf("after decompress files = %v, want %v", got, want)
	}
	if got := readFile(t, filepath.Join(dir, "a.csv")); got != "1,2,3" {
		t.Errorf("a.csv = %q, want %q", got, "1,2,3")
	}
	if got := readFile(t, filepath.Join(dir, "b.csv")); got != "" {
		t.Errorf("b.csv = %q, want empty", got)
	}
	if got := readFile(t, filepath.Join(dir, "notes.txt")); got != "keep me" {
		t.Errorf("notes.txt = %q, want untouched", got)
	}
}

func TestRun_NestedDirectoryFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "c.csv"), "c")
	writeFile(t, filepath.Join(dir, "top.csv"), "top")

	r := newRunner(t, WithWorkers(1))
	report, err := r.Compress(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if !strings.HasSuffix(report.Results[0].Path, filepath.Join("sub", "c.csv")) {
		t.Errorf("first result = %s, want sub/c.csv", report.Results[0].Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "c.bin")); err != nil {
		t.Errorf("sub/c.bin missing: %v", err)
	}
}

func TestRun_ExtensionSwapIsOneToOne(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for _, rel := range []string{"a.csv", "x/b.csv", "x/y/c.csv", "x/y/d.csv", "z/e.csv"} {
		writeFile(t, filepath.Join(dir, rel), rel+"\n1,2\n")
		want = append(want, strings.TrimSuffix(rel, ".csv")+".bin")
	}
	writeFile(t, filepath.Join(dir, "x", "readme.md"), "#")
	want = append(want, "x/readme.md")
	sort.Strings(want)

	r := newRunner(t, WithWorkers(3))
	if _, err := r.Compress(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if got := listFiles(t, dir); !equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestRun_CompressFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "real.csv"), "1,2,3")
	writeFile(t, filepath.Join(outside, "tree", "deep.csv"), "4,5,6")
	if err := os.Symlink(filepath.Join(outside, "real.csv"), filepath.Join(dir, "link.csv")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "tree"), filepath.Join(dir, "linkdir")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	r := newRunner(t)
	report, err := r.Compress(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if report.Total != 2 || report.Completed != 2 {
		t.Errorf("Total/Completed = %d/%d, want 2/2", report.Total, report.Completed)
	}
	if got, want := listFiles(t, dir), []string{"link.bin"}; !equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if got, want := listFiles(t, outside), []string{"real.csv", "tree/deep.bin"}; !equal(got, want) {
		t.Errorf("outside files = %v, want %v", got, want)
	}
}

func TestRun_NotFound(t *testing.T) {
	r := newRunner(t)
	_, err := r.Compress(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Compress() error = %v, want ErrNotFound", err)
	}
}

func TestRun_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "a.csv")
	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, csv, "1")
	writeFile(t, txt, "n")

	r := newRunner(t)
	report, err := r.Compress(context.Background(), []string{csv, txt, csv})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if report.Total != 1 || report.Completed != 1 {
		t.Errorf("Total/Completed = %d/%d, want 1/1", report.Total, report.Completed)
	}
	if got, want := listFiles(t, dir), []string{"a.bin", "notes.txt"}; !equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	var snaps []progress.Snapshot
	r := newRunner(t, WithProgress(func(s progress.Snapshot) { snaps = append(snaps, s) }))

	report, err := r.Compress(context.Background(), []string{t.TempDir()})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if report.Total != 0 {
		t.Errorf("Total = %d, want 0", report.Total)
	}
	if len(snaps) != 1 || progress.Line(snaps[0], 10) != "no items" {
		t.Errorf("progress = %+v, want a single no-items snapshot", snaps)
	}
}

func TestRun_CounterNeverExceedsTotal(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 40; i++ {
		writeFile(t, filepath.Join(dir, string(rune('a'+i%5)), strings.Repeat("f", i+1)+".csv"), "v")
	}

	var mu sync.Mutex
	var last progress.Snapshot
	r := newRunner(t, WithWorkers(8), WithProgress(func(s progress.Snapshot) {
		if s.Completed+s.Failed > s.Total {
			t.Errorf("completed %d exceeds total %d", s.Completed, s.Total)
		}
		mu.Lock()
		if s.Completed > last.Completed {
			last = s
		}
		mu.Unlock()
	}))

	report, err := r.Compress(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if report.Completed != 40 || report.Total != 40 {
		t.Errorf("Completed/Total = %d/%d, want 40/40", report.Completed, report.Total)
	}
	if last.Completed != 40 {
		t.Errorf("last progress = %d, want 40", last.Completed)
	}
}

func TestRun_FailFastSkipsQueued(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bin", "b.bin", "c.bin", "d.bin"} {
		writeFile(t, filepath.Join(dir, name), "not a record")
	}

	r := newRunner(t, WithWorkers(1))
	report, err := r.Decompress(context.Background(), []string{dir})

	var jobErr *JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("Decompress() error = %v, want *JobError", err)
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Decompress() error = %v, want ErrDecode", err)
	}
	if report.Failed != 1 || report.Skipped != 3 || report.Completed != 0 {
		t.Errorf("Failed/Skipped/Completed = %d/%d/%d, want 1/3/0",
			report.Failed, report.Skipped, report.Completed)
	}
	if got := len(listFiles(t, dir)); got != 4 {
		t.Errorf("%d files remain, want all 4 sources untouched", got)
	}
}

func TestRun_KeepGoingCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good1.csv"), "1")
	writeFile(t, filepath.Join(dir, "good2.csv"), "2")

	r := newRunner(t, WithFailurePolicy(KeepGoing), WithWorkers(2))
	if _, err := r.Compress(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "bad1.bin"), "garbage")
	writeFile(t, filepath.Join(dir, "bad2.bin"), "")

	report, err := r.Decompress(context.Background(), []string{dir})
	if !errors.Is(err, ErrJobsFailed) {
		t.Fatalf("Decompress() error = %v, want ErrJobsFailed", err)
	}
	if report.Completed != 2 || report.Failed != 2 || report.Skipped != 0 {
		t.Errorf("Completed/Failed/Skipped = %d/%d/%d, want 2/2/0",
			report.Completed, report.Failed, report.Skipped)
	}
	if got := len(report.Failures()); got != 2 {
		t.Errorf("Failures() = %d, want 2", got)
	}
	want := []string{"bad1.bin", "bad2.bin", "good1.csv", "good2.csv"}
	if got := listFiles(t, dir); !equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestRun_KeepSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "1,2")

	r := newRunner(t, WithKeepSource(true), WithCodec(zstdcodec.New()))
	report, err := r.Compress(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if report.Codec != "zstd" {
		t.Errorf("Codec = %q, want zstd", report.Codec)
	}
	if got, want := listFiles(t, dir), []string{"a.bin", "a.csv"}; !equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestRun_VerifyChangesNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "1,2,3\n")
	r := newRunner(t)
	if _, err := r.Compress(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	before := readFile(t, filepath.Join(dir, "a.bin"))

	report, err := r.Verify(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if report.Completed != 1 {
		t.Errorf("Completed = %d, want 1", report.Completed)
	}
	if res := report.Results[0]; res.BytesOut != 6 || res.Output != "" {
		t.Errorf("result = %+v, want 6 decoded bytes and no output", res)
	}
	if after := readFile(t, filepath.Join(dir, "a.bin")); after != before {
		t.Error("Verify() modified a.bin")
	}
}

func TestRun_Locked(t *testing.T) {
	dir := t.TempDir()
	lockDir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "1")

	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}
	held := flock.New(lockPath(lockDir, abs))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	defer held.Unlock()

	r, err := New(WithLockDir(lockDir))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := r.Compress(context.Background(), []string{dir}); !errors.Is(err, ErrLocked) {
		t.Errorf("Compress() error = %v, want ErrLocked", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.csv")); err != nil {
		t.Errorf("a.csv should be untouched: %v", err)
	}

	// The lock is taken before the tree is counted, so a walk that would
	// fail never starts.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Compress(ctx, []string{dir}); !errors.Is(err, ErrLocked) {
		t.Errorf("Compress() with cancelled context error = %v, want ErrLocked", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t)
	_, err := r.Compress(ctx, []string{dir})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compress() error = %v, want context.Canceled", err)
	}
}

func TestRun_DecompressLegacyRecord(t *testing.T) {
	dir := t.TempDir()
	text := "time,ch1\n0,0.25\n"

	var nrbf bytes.Buffer
	nrbf.WriteByte(0x00)
	for _, v := range []int32{1, -1, 1, 0} {
		binary.Write(&nrbf, binary.LittleEndian, v)
	}
	nrbf.WriteByte(0x06)
	binary.Write(&nrbf, binary.LittleEndian, int32(1))
	nrbf.WriteByte(byte(len(text)))
	nrbf.WriteString(text)
	nrbf.WriteByte(0x0B)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write(nrbf.Bytes())
	zw.Close()
	writeFile(t, filepath.Join(dir, "old.bin"), gz.String())

	r := newRunner(t)
	if _, err := r.Decompress(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "old.csv")); got != text {
		t.Errorf("old.csv = %q, want %q", got, text)
	}
}

func TestWriteAtomic_FailureLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	_, err := writeAtomic(dst, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("writeAtomic() error = %v, want boom", err)
	}
	if files := listFiles(t, dir); len(files) != 0 {
		t.Errorf("files left behind: %v", files)
	}
}

func TestSwapExt(t *testing.T) {
	tests := []struct{ in, ext, want string }{
		{"/d/a.csv", ".bin", "/d/a.bin"},
		{"/d/a.b.csv", ".bin", "/d/a.b.bin"},
		{"/d/a.bin", ".csv", "/d/a.csv"},
	}
	for _, tt := range tests {
		if got := swapExt(tt.in, tt.ext); got != tt.want {
			t.Errorf("swapExt(%q, %q) = %q, want %q", tt.in, tt.ext, got, tt.want)
		}
	}
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"gzip", "zstd", "none"} {
		c, err := CodecByName(name)
		if err != nil {
			t.Errorf("CodecByName(%q) error = %v", name, err)
			continue
		}
		if c.Name() != name {
			t.Errorf("CodecByName(%q).Name() = %q", name, c.Name())
		}
	}
	if _, err := CodecByName("lz4"); err == nil {
		t.Error("CodecByName(lz4) expected error")
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
