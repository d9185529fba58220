// Package schema implements spec.md §4.1's fixed header and schema
// descriptor: the file signature, version, flags, counters, and the
// per-field metadata describing a table's fixed column layout.
package schema

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashgrid/rowdb/rowdberr"
)

// Signature identifies a rowdb file. A file whose first four bytes differ
// fails to open with InvalidSignature.
const Signature uint32 = 0x0123BABE

// CurrentMajor/CurrentMinor are the format version this implementation
// writes. Bit-exact compatibility is required at this major version;
// older majors (>=MinReadableMajor) may be opened read-only and upgraded.
const (
	CurrentMajor     byte = 6
	CurrentMinor     byte = 0
	MinReadableMajor byte = 2
)

const (
	flagEncrypted uint32 = 0x1
)

// Header is the fixed preamble described in spec.md §4.1. NumRecords,
// NumDeleted and IndexStartOffset are maintained by the engine and persisted
// on every structural change; UserVersion is a caller-controlled float.
type Header struct {
	Major            byte
	Minor            byte
	Flags            uint32
	NumRecords       int32
	NumDeleted       int32
	IndexStartOffset int32
	UserVersion      float32
}

func (h Header) Encrypted() bool { return h.Flags&flagEncrypted != 0 }

func (h *Header) SetEncrypted(v bool) {
	if v {
		h.Flags |= flagEncrypted
	} else {
		h.Flags &^= flagEncrypted
	}
}

// HeaderSize returns H from spec.md §4.1's offset table: 14 bytes when
// major>=6 (flags + reserved word present), 6 bytes for older majors.
func HeaderSize(major byte) int {
	if major >= 6 {
		return 14
	}
	return 6
}

// WriteHeader writes the signature, version, and (for major>=6) the flags
// and reserved word, followed by the mutable counters and, for major>=3,
// the user version float.
func WriteHeader(w io.Writer, h Header) error {
	if err := binary.Write(w, binary.LittleEndian, Signature); err != nil {
		return err
	}
	if _, err := w.Write([]byte{h.Major, h.Minor}); err != nil {
		return err
	}
	if h.Major >= 6 {
		if err := binary.Write(w, binary.LittleEndian, h.Flags); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(0)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, h.NumRecords); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.NumDeleted); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.IndexStartOffset); err != nil {
		return err
	}
	if h.Major >= 3 {
		if err := binary.Write(w, binary.LittleEndian, h.UserVersion); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader reads and validates the header, returning InvalidSignature or
// UnsupportedNewerVersion as appropriate.
func ReadHeader(r io.Reader) (Header, error) {
	var sig uint32
	if err := binary.Read(r, binary.LittleEndian, &sig); err != nil {
		return Header{}, fmt.Errorf("schema: failed to read signature: %w", err)
	}
	if sig != Signature {
		return Header{}, rowdberr.ErrInvalidSignature
	}

	var verBytes [2]byte
	if _, err := io.ReadFull(r, verBytes[:]); err != nil {
		return Header{}, err
	}
	h := Header{Major: verBytes[0], Minor: verBytes[1]}

	if h.Major > CurrentMajor {
		return Header{}, rowdberr.ErrUnsupportedNewerVersion
	}
	if h.Major < MinReadableMajor {
		return Header{}, rowdberr.New(rowdberr.KindUnsupportedNewerVersion, "major version %d predates the minimum readable version %d", h.Major, MinReadableMajor)
	}

	if h.Major >= 6 {
		if err := binary.Read(r, binary.LittleEndian, &h.Flags); err != nil {
			return Header{}, err
		}
		var reserved int32
		if err := binary.Read(r, binary.LittleEndian, &reserved); err != nil {
			return Header{}, err
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &h.NumRecords); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.NumDeleted); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.IndexStartOffset); err != nil {
		return Header{}, err
	}

	if h.Major >= 3 {
		if err := binary.Read(r, binary.LittleEndian, &h.UserVersion); err != nil {
			return Header{}, err
		}
	}

	return h, nil
}
