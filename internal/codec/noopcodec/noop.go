// Package noopcodec provides a no-op codec (no compression).
package noopcodec

import (
	"io"

	"github.com/hapislab/csvpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Reader returns r wrapped as a ReadCloser (no decompression).
// Close never closes r; the caller owns it.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w wrapped as a WriteCloser (no compression).
// Close never closes w; the caller owns it.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return &nopWriteCloser{w}, nil
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

// Magic returns nil.
func (c *Codec) Magic() []byte {
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
