// Package record implements the on-disk EncodedRecord format: one file's
// content framed with a length prefix and a BLAKE3 digest, wrapped in a
// compression codec.
//
// Frame layout (version 1, all integers little-endian):
//
//	offset size  field
//	0      3     magic "CPK"
//	3      1     version
//	4      4     payload length N (uint32)
//	8      N     payload, the original file bytes
//	8+N    32    BLAKE3-256 of the payload
//
// The frame is then written through a codec.Codec. Decoding detects the
// codec from the stream's leading bytes, so readers never need to be told
// how an artifact was compressed.
package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/zeebo/blake3"

	"github.com/hapislab/csvpack/internal/codec"
	"github.com/hapislab/csvpack/internal/codec/gzipcodec"
	"github.com/hapislab/csvpack/internal/codec/noopcodec"
	"github.com/hapislab/csvpack/internal/codec/zstdcodec"
)

// Version is the frame version written by Encode.
const Version = 1

const (
	headerSize = 8
	digestSize = 32
)

var frameMagic = []byte("CPK")

// maxStream bounds how many decompressed bytes DecodeInfo reads: the
// largest valid v1 frame.
var maxStream int64 = headerSize + math.MaxUint32 + digestSize

// Sentinel errors. Every decoding failure satisfies errors.Is(err, ErrDecode).
var (
	// ErrDecode indicates a corrupt or foreign-format artifact.
	ErrDecode = errors.New("record: decode failed")

	// ErrBadMagic indicates the payload is neither a csvpack frame nor a legacy record.
	ErrBadMagic = fmt.Errorf("%w: unrecognized record format", ErrDecode)

	// ErrUnsupportedVersion indicates a frame written by a newer csvpack.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported frame version", ErrDecode)

	// ErrTruncated indicates the frame ended before its declared length.
	ErrTruncated = fmt.Errorf("%w: truncated record", ErrDecode)

	// ErrTrailingData indicates bytes after the end of the frame.
	ErrTrailingData = fmt.Errorf("%w: trailing data after record", ErrDecode)

	// ErrChecksum indicates the payload does not match its digest.
	ErrChecksum = fmt.Errorf("%w: payload checksum mismatch", ErrDecode)

	// ErrTooLarge is returned by Encode for payloads over 4 GiB, and wrapped
	// with ErrDecode when a stream inflates past the largest valid frame.
	ErrTooLarge = errors.New("record: payload exceeds 4 GiB")
)

// Format identifies the frame layout found inside an artifact.
type Format string

const (
	// FormatV1 is the csvpack frame.
	FormatV1 Format = "v1"
	// FormatLegacy is a string serialized by the original .NET tool.
	FormatLegacy Format = "legacy-nrbf"
)

// Info describes a decoded artifact.
type Info struct {
	Codec  string
	Format Format
	Size   int
}

// knownCodecs are tried in order against the stream's leading bytes.
// The noop codec has no magic and is the fallback.
var knownCodecs = []codec.Codec{
	gzipcodec.New(),
	zstdcodec.New(),
}

// Encode writes payload to w as a version 1 frame compressed with c.
func Encode(w io.Writer, c codec.Codec, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return ErrTooLarge
	}

	cw, err := c.Writer(w)
	if err != nil {
		return fmt.Errorf("creating %s writer: %w", c.Name(), err)
	}

	var header [headerSize]byte
	copy(header[:], frameMagic)
	header[3] = Version
	binary.LittleEndian.PutUint32(header[4:], uint32(len(payload)))
	sum := blake3.Sum256(payload)

	for _, chunk := range [][]byte{header[:], payload, sum[:]} {
		if _, err := cw.Write(chunk); err != nil {
			cw.Close()
			return fmt.Errorf("writing record: %w", err)
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("closing %s writer: %w", c.Name(), err)
	}
	return nil
}

// Decode reads one artifact from r and returns the original payload.
func Decode(r io.Reader) ([]byte, error) {
	payload, _, err := DecodeInfo(r)
	return payload, err
}

// DecodeInfo is like Decode but also reports how the artifact was written.
func DecodeInfo(r io.Reader) ([]byte, Info, error) {
	br := bufio.NewReader(r)
	c := Detect(br)
	info := Info{Codec: c.Name()}

	cr, err := c.Reader(br)
	if err != nil {
		return nil, info, fmt.Errorf("%w: opening %s stream: %w", ErrDecode, c.Name(), err)
	}
	defer cr.Close()

	data, err := io.ReadAll(io.LimitReader(cr, maxStream+1))
	if err != nil {
		return nil, info, fmt.Errorf("%w: reading %s stream: %w", ErrDecode, c.Name(), err)
	}
	if int64(len(data)) > maxStream {
		return nil, info, fmt.Errorf("%w: %s stream: %w", ErrDecode, c.Name(), ErrTooLarge)
	}

	var payload []byte
	switch {
	case bytes.HasPrefix(data, frameMagic):
		info.Format = FormatV1
		payload, err = parseFrame(data)
	case isLegacy(data):
		info.Format = FormatLegacy
		payload, err = parseLegacy(data)
	default:
		err = ErrBadMagic
	}
	if err != nil {
		return nil, info, err
	}

	info.Size = len(payload)
	return payload, info, nil
}

// Detect peeks at br and returns the codec whose magic prefixes the stream.
// Streams matching no known magic are treated as uncompressed.
func Detect(br *bufio.Reader) codec.Codec {
	// A short or failed peek still returns whatever bytes are buffered.
	head, _ := br.Peek(4)
	for _, c := range knownCodecs {
		if bytes.HasPrefix(head, c.Magic()) {
			return c
		}
	}
	return noopcodec.New()
}

func parseFrame(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if v := data[3]; v != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, v, Version)
	}

	n := uint64(binary.LittleEndian.Uint32(data[4:headerSize]))
	body := data[headerSize:]
	switch {
	case uint64(len(body)) < n+digestSize:
		return nil, ErrTruncated
	case uint64(len(body)) > n+digestSize:
		return nil, ErrTrailingData
	}

	payload, digest := body[:n], body[n:]
	sum := blake3.Sum256(payload)
	if !bytes.Equal(sum[:], digest) {
		return nil, ErrChecksum
	}
	return payload, nil
}
