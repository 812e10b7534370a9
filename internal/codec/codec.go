// Package codec provides the compression layer wrapped around encoded records.
package codec

import "io"

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Name returns the short codec name used on the command line
	// (e.g., "gzip", "zstd", "none").
	Name() string
	// Magic returns the leading bytes of every stream this codec writes.
	// Returns nil for no compression.
	Magic() []byte
}
