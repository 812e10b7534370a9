package csvpack

import "fmt"

// Direction selects what a run does to each file.
type Direction int

const (
	// Compress turns every .csv into a sibling .bin record.
	Compress Direction = iota
	// Decompress turns every .bin record back into a sibling .csv.
	Decompress
	// Verify decodes every .bin without writing or deleting anything.
	Verify
)

// Artifact extensions.
const (
	ExtCSV = ".csv"
	ExtBin = ".bin"
)

// InputExt returns the extension of the files a run selects.
func (d Direction) InputExt() string {
	if d == Compress {
		return ExtCSV
	}
	return ExtBin
}

// OutputExt returns the extension of the files a run writes, or "" for Verify.
func (d Direction) OutputExt() string {
	switch d {
	case Compress:
		return ExtBin
	case Decompress:
		return ExtCSV
	default:
		return ""
	}
}

func (d Direction) String() string {
	switch d {
	case Compress:
		return "compress"
	case Decompress:
		return "decompress"
	case Verify:
		return "verify"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "compress":
		*d = Compress
	case "decompress":
		*d = Decompress
	case "verify":
		*d = Verify
	default:
		return fmt.Errorf("unknown direction: %q", text)
	}
	return nil
}

// FailurePolicy decides what a run does after a file fails.
type FailurePolicy int

const (
	// FailFast stops dispatching new files after the first failure.
	// Files already being converted finish; the rest are skipped.
	FailFast FailurePolicy = iota
	// KeepGoing converts every file and reports all failures at the end.
	KeepGoing
)

func (p FailurePolicy) String() string {
	if p == KeepGoing {
		return "keep-going"
	}
	return "fail-fast"
}
