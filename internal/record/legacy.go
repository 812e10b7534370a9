package record

import (
	"encoding/binary"
	"math"
)

// Records written by the original measurement tooling are a gzip stream
// around a .NET BinaryFormatter (MS-NRBF) serialization of a single string:
//
//	SerializationHeaderRecord  0x00, RootId, HeaderId, MajorVersion=1, MinorVersion=0 (int32 each)
//	BinaryObjectString         0x06, ObjectId (int32), LengthPrefixedString
//	MessageEnd                 0x0B
//
// LengthPrefixedString is a 7-bit encoded length followed by UTF-8 bytes.
const (
	nrbfHeaderRecord   = 0x00
	nrbfObjectString   = 0x06
	nrbfMessageEnd     = 0x0B
	nrbfHeaderSize     = 17
	nrbfMaxLengthBytes = 5
)

func isLegacy(data []byte) bool {
	return len(data) > nrbfHeaderSize &&
		data[0] == nrbfHeaderRecord &&
		data[nrbfHeaderSize] == nrbfObjectString
}

func parseLegacy(data []byte) ([]byte, error) {
	major := binary.LittleEndian.Uint32(data[9:13])
	minor := binary.LittleEndian.Uint32(data[13:17])
	if major != 1 || minor != 0 {
		return nil, ErrUnsupportedVersion
	}

	// Record type byte plus ObjectId.
	if len(data) <= nrbfHeaderSize+1+4 {
		return nil, ErrTruncated
	}
	rest := data[nrbfHeaderSize+1+4:]

	n, width := binary.Uvarint(rest)
	if width <= 0 || width > nrbfMaxLengthBytes || n > math.MaxInt32 {
		return nil, ErrBadMagic
	}
	rest = rest[width:]

	if uint64(len(rest)) < n+1 {
		return nil, ErrTruncated
	}
	payload := rest[:n]
	tail := rest[n:]
	if tail[0] != nrbfMessageEnd {
		return nil, ErrBadMagic
	}
	if len(tail) > 1 {
		return nil, ErrTrailingData
	}
	return payload, nil
}
