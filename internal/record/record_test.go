package record

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/hapislab/csvpack/internal/codec"
	"github.com/hapislab/csvpack/internal/codec/gzipcodec"
	"github.com/hapislab/csvpack/internal/codec/noopcodec"
	"github.com/hapislab/csvpack/internal/codec/zstdcodec"
)

func encode(t *testing.T, c codec.Codec, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, c, payload); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	codecs := []codec.Codec{gzipcodec.New(), zstdcodec.New(), noopcodec.New()}
	payloads := map[string][]byte{
		"csv":          []byte("1,2,3"),
		"empty":        {},
		"multiline":    []byte("t,v\r\n0,0.5\r\n1,0.25\r\n"),
		"utf8":         []byte("温度,振幅\n25.0,0.1\n"),
		"invalid utf8": {0xff, 0xfe, 0x00, 'a'},
		"bom":          []byte("\xef\xbb\xbfa,b\n"),
	}

	for _, c := range codecs {
		for name, payload := range payloads {
			t.Run(c.Name()+"/"+name, func(t *testing.T) {
				data := encode(t, c, payload)

				got, info, err := DecodeInfo(bytes.NewReader(data))
				if err != nil {
					t.Fatalf("DecodeInfo() error = %v", err)
				}
				if !bytes.Equal(got, payload) {
					t.Errorf("DecodeInfo() = %q, want %q", got, payload)
				}
				if info.Codec != c.Name() {
					t.Errorf("Info.Codec = %q, want %q", info.Codec, c.Name())
				}
				if info.Format != FormatV1 {
					t.Errorf("Info.Format = %q, want %q", info.Format, FormatV1)
				}
				if info.Size != len(payload) {
					t.Errorf("Info.Size = %d, want %d", info.Size, len(payload))
				}
			})
		}
	}
}

func TestEncode_FrameLayout(t *testing.T) {
	data := encode(t, noopcodec.New(), []byte("abc"))

	if len(data) != headerSize+3+digestSize {
		t.Fatalf("len = %d, want %d", len(data), headerSize+3+digestSize)
	}
	if string(data[:3]) != "CPK" {
		t.Errorf("magic = %q, want %q", data[:3], "CPK")
	}
	if data[3] != Version {
		t.Errorf("version = %d, want %d", data[3], Version)
	}
	if n := binary.LittleEndian.Uint32(data[4:8]); n != 3 {
		t.Errorf("length = %d, want 3", n)
	}
	if string(data[8:11]) != "abc" {
		t.Errorf("payload = %q, want %q", data[8:11], "abc")
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := encode(t, noopcodec.New(), []byte("1,2,3"))

	corruptDigest := bytes.Clone(valid)
	corruptDigest[len(corruptDigest)-1] ^= 0xff

	corruptPayload := bytes.Clone(valid)
	corruptPayload[headerSize] = '9'

	newer := bytes.Clone(valid)
	newer[3] = Version + 1

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrBadMagic},
		{"foreign text", []byte("time,value\n0,1\n"), ErrBadMagic},
		{"header only", valid[:5], ErrTruncated},
		{"truncated payload", valid[:len(valid)-10], ErrTruncated},
		{"trailing data", append(bytes.Clone(valid), 0x00), ErrTrailingData},
		{"corrupt digest", corruptDigest, ErrChecksum},
		{"corrupt payload", corruptPayload, ErrChecksum},
		{"newer version", newer, ErrUnsupportedVersion},
		{"broken gzip", []byte{0x1f, 0x8b, 0x08, 0x00, 0x01}, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Decode() error = %v, want it to satisfy ErrDecode", err)
			}
		})
	}
}

// legacyRecord builds the byte stream the original .NET tool wrote:
// BinaryFormatter.Serialize(string) inside a GZipStream.
func TestDecode_StreamLimit(t *testing.T) {
	old := maxStream
	maxStream = headerSize + 24 + digestSize
	t.Cleanup(func() { maxStream = old })

	fits := encode(t, gzipcodec.New(), bytes.Repeat([]byte("a"), 24))
	if _, err := Decode(bytes.NewReader(fits)); err != nil {
		t.Fatalf("Decode() at the limit error = %v", err)
	}

	over := encode(t, gzipcodec.New(), bytes.Repeat([]byte("a"), 25))
	_, err := Decode(bytes.NewReader(over))
	if !errors.Is(err, ErrTooLarge) || !errors.Is(err, ErrDecode) {
		t.Errorf("Decode() past the limit error = %v, want ErrTooLarge and ErrDecode", err)
	}
}

func legacyRecord(t *testing.T, text string) []byte {
	t.Helper()
	var nrbf bytes.Buffer
	nrbf.WriteByte(nrbfHeaderRecord)
	for _, v := range []int32{1, -1, 1, 0} {
		binary.Write(&nrbf, binary.LittleEndian, v)
	}
	nrbf.WriteByte(nrbfObjectString)
	binary.Write(&nrbf, binary.LittleEndian, int32(1))
	nrbf.Write(binary.AppendUvarint(nil, uint64(len(text))))
	nrbf.WriteString(text)
	nrbf.WriteByte(nrbfMessageEnd)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(nrbf.Bytes()); err != nil {
		t.Fatalf("gzip Write() error = %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestDecode_Legacy(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"short", "1,2,3"},
		{"empty", ""},
		// Longer than 127 bytes needs a two-byte length prefix.
		{"long", string(bytes.Repeat([]byte("0.001,0.5\n"), 300))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, info, err := DecodeInfo(bytes.NewReader(legacyRecord(t, tt.text)))
			if err != nil {
				t.Fatalf("DecodeInfo() error = %v", err)
			}
			if string(got) != tt.text {
				t.Errorf("DecodeInfo() = %q, want %q", got, tt.text)
			}
			if info.Format != FormatLegacy {
				t.Errorf("Info.Format = %q, want %q", info.Format, FormatLegacy)
			}
			if info.Codec != "gzip" {
				t.Errorf("Info.Codec = %q, want gzip", info.Codec)
			}
		})
	}
}

func TestParseLegacy_Truncated(t *testing.T) {
	header := make([]byte, nrbfHeaderSize+1)
	binary.LittleEndian.PutUint32(header[9:13], 1)
	header[nrbfHeaderSize] = nrbfObjectString

	_, err := parseLegacy(header)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("parseLegacy() error = %v, want ErrTruncated", err)
	}
}

func BenchmarkEncode(b *testing.B) {
	payload := bytes.Repeat([]byte("2.000e-07,0.1523,-0.0421\n"), 40000)
	c := gzipcodec.New()
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := Encode(&buf, c, payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	payload := bytes.Repeat([]byte("2.000e-07,0.1523,-0.0421\n"), 40000)
	var buf bytes.Buffer
	if err := Encode(&buf, gzipcodec.New(), payload); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
