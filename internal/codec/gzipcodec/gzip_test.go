package gzipcodec_test

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/hapislab/csvpack/internal/codec/gzipcodec"
	"github.com/hapislab/csvpack/internal/record"
)

var capture = []byte("time,ch_a,ch_b\n0.0,0.12,-0.04\n2.0e-7,0.15,-0.02\n4.0e-7,0.11,-0.05\n")

func TestCodec_NameAndMagic(t *testing.T) {
	c := gzipcodec.New()
	if got := c.Name(); got != "gzip" {
		t.Errorf("Name() = %q, want gzip", got)
	}
	if got := c.Magic(); !bytes.Equal(got, []byte{0x1f, 0x8b}) {
		t.Errorf("Magic() = %x, want 1f8b", got)
	}
}

func TestNewLevel_DetectedAndDecoded(t *testing.T) {
	levels := map[string]int{
		"huffman": gzip.HuffmanOnly,
		"default": gzip.DefaultCompression,
		"speed":   gzip.BestSpeed,
		"best":    gzip.BestCompression,
	}
	for name, level := range levels {
		t.Run(name, func(t *testing.T) {
			c := gzipcodec.NewLevel(level)
			var buf bytes.Buffer
			if err := record.Encode(&buf, c, capture); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), c.Magic()) {
				t.Errorf("record starts with %x, want magic %x", buf.Bytes()[:2], c.Magic())
			}

			detected := record.Detect(bufio.NewReader(bytes.NewReader(buf.Bytes())))
			if detected.Name() != "gzip" {
				t.Errorf("Detect() = %s, want gzip", detected.Name())
			}

			payload, info, err := record.DecodeInfo(&buf)
			if err != nil {
				t.Fatalf("DecodeInfo() error = %v", err)
			}
			if info.Codec != "gzip" {
				t.Errorf("Info.Codec = %q, want gzip", info.Codec)
			}
			if !bytes.Equal(payload, capture) {
				t.Error("payload differs after decoding")
			}
		})
	}
}

func TestNewLevel_Invalid(t *testing.T) {
	if _, err := gzipcodec.NewLevel(42).Writer(io.Discard); err == nil {
		t.Error("Writer() with level 42 should fail")
	}
}

func TestCodec_ReaderRejectsPlainCSV(t *testing.T) {
	if _, err := gzipcodec.New().Reader(bytes.NewReader(capture)); err == nil {
		t.Error("Reader() over plain CSV should fail on the missing header")
	}
}

func BenchmarkWriter(b *testing.B) {
	c := gzipcodec.New()
	data := bytes.Repeat(capture, 1000)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w, _ := c.Writer(io.Discard)
		w.Write(data)
		w.Close()
	}
}
