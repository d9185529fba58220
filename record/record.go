package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashgrid/rowdb/cipher"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
)

// Values is a decoded record: field name (as spelled in the schema) to its
// typed value, one entry per schema field (null values still present with
// their Null flag set, so callers can distinguish "missing from input" from
// "explicitly null" during partial updates).
type Values map[string]valuecodec.Value

// EncodePayload serializes rec (keyed by field name, case-insensitive
// lookups against s) into the nullmask+fields payload described in
// spec.md §4.2, before any encryption envelope is applied. A field absent
// from rec, or present with Value.Null set, is marked null in the mask.
func EncodePayload(s *schema.Schema, rec Values) ([]byte, error) {
	mask := NewNullMask(len(s.Fields))
	var fieldBuf bytes.Buffer

	for _, f := range s.Fields {
		v, ok := lookup(rec, f.Name)
		if !ok || v.Null {
			mask.SetNull(f.Ordinal, true)
			continue
		}
		if v.Type != f.Type || v.IsArray != f.IsArray {
			return nil, rowdberr.New(rowdberr.KindInvalidDataType, "field %q: value type %v[array=%v] does not match schema type %v[array=%v]", f.Name, v.Type, v.IsArray, f.Type, f.IsArray)
		}
		if err := valuecodec.WriteValue(&fieldBuf, v); err != nil {
			return nil, fmt.Errorf("record: failed to encode field %q: %w", f.Name, err)
		}
	}

	out := make([]byte, 0, mask.ByteSize()+fieldBuf.Len())
	out = append(out, mask.ToBytes()...)
	out = append(out, fieldBuf.Bytes()...)
	return out, nil
}

// SizeOfPayload computes the exact encoded size EncodePayload would produce,
// without allocating the payload itself, used by the mutation engine to
// decide in-place rewrite vs. relocation before serializing.
func SizeOfPayload(s *schema.Schema, rec Values) (int, error) {
	total := (len(s.Fields) + 7) / 8
	for _, f := range s.Fields {
		v, ok := lookup(rec, f.Name)
		if !ok || v.Null {
			continue
		}
		n, err := valuecodec.SizeOfValue(v)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(s *schema.Schema, payload []byte) (Values, error) {
	maskBytes := (len(s.Fields) + 7) / 8
	if len(payload) < maskBytes {
		return nil, fmt.Errorf("record: payload shorter than nullmask (%d < %d)", len(payload), maskBytes)
	}

	r := bytes.NewReader(payload[maskBytes:])
	out := make(Values, len(s.Fields))

	for _, f := range s.Fields {
		if IsNullAt(payload, f.Ordinal) {
			out[f.Name] = valuecodec.NewNull(f.Type, f.IsArray)
			continue
		}
		v, err := valuecodec.ReadValue(r, f.Type, f.IsArray)
		if err != nil {
			return nil, fmt.Errorf("record: failed to decode field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// DecodePrimaryKey decodes only the primary key field (always ordinal 0)
// from a payload, skipping every other field. This is the fast path the
// binary-search lookup in package index relies on.
func DecodePrimaryKey(s *schema.Schema, payload []byte) (valuecodec.Value, error) {
	pk, ok := s.PrimaryKeyField()
	if !ok {
		return valuecodec.Value{}, rowdberr.ErrMissingPrimaryKey
	}
	maskBytes := (len(s.Fields) + 7) / 8
	if len(payload) < maskBytes {
		return valuecodec.Value{}, fmt.Errorf("record: payload shorter than nullmask")
	}
	if IsNullAt(payload, 0) {
		return valuecodec.NewNull(pk.Type, pk.IsArray), nil
	}
	r := bytes.NewReader(payload[maskBytes:])
	return valuecodec.ReadValue(r, pk.Type, pk.IsArray)
}

func lookup(rec Values, name string) (valuecodec.Value, bool) {
	if v, ok := rec[name]; ok {
		return v, true
	}
	for k, v := range rec {
		if sameFold(k, name) {
			return v, true
		}
	}
	return valuecodec.Value{}, false
}

func sameFold(a, b string) bool {
	return valuecodec.StringEqualFold(a, b, true)
}

// WriteFrame writes the `[size:i32][payload]` record frame at the stream's
// current position. When enc is non-nil the payload is encrypted first and
// size counts the ciphertext length, matching spec.md §4.2's envelope rule.
// A negative size marks a tombstone.
func WriteFrame(w io.Writer, payload []byte, tombstone bool, enc cipher.Cipher) (frameSize int, err error) {
	onWire := payload
	if enc != nil {
		onWire, err = enc.Encrypt(payload)
		if err != nil {
			return 0, fmt.Errorf("record: encryption failed: %w", err)
		}
	}

	size := int32(len(onWire))
	if tombstone {
		size = -size
	}
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return 0, err
	}
	if _, err := w.Write(onWire); err != nil {
		return 0, err
	}
	return len(onWire), nil
}

// SizeOfFrame returns the total on-disk size (size prefix + payload) a
// frame carrying payload (already through encryption, if any) occupies.
func SizeOfFrame(onWireLen int) int { return 4 + onWireLen }

// ReadFrameAt reads the frame at the given stream position via r (already
// positioned there), returning the decrypted payload and whether the slot
// is tombstoned. absSize is the payload's on-wire length (ciphertext length
// when encrypted), used by callers that need to know the slot capacity.
func ReadFrameAt(r io.Reader, enc cipher.Cipher) (payload []byte, tombstoned bool, absSize int32, err error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, false, 0, err
	}
	tombstoned = size < 0
	absSize = size
	if tombstoned {
		absSize = -size
	}

	raw := make([]byte, absSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, false, 0, fmt.Errorf("record: failed to read frame payload: %w", err)
	}

	if enc != nil {
		raw, err = enc.Decrypt(raw)
		if err != nil {
			return nil, false, 0, fmt.Errorf("record: decryption failed: %w", err)
		}
	}

	return raw, tombstoned, absSize, nil
}

// RewriteSizePrefix overwrites just the [size:i32] prefix of a frame
// in-place, used to tombstone a live record (negate its size) without
// touching the payload bytes, mirroring the teacher's wal.go pattern of
// seeking back to patch a previously-reserved field.
func RewriteSizePrefix(b stream.Backing, frameOffset int64, size int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(size))
	return stream.WriteAt(b, frameOffset, buf)
}
