package valuecodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncodeForHashing renders a non-null, non-array scalar value's canonical
// on-disk bytes, suitable as bloom-filter input for the index package's
// negative-lookup fast path. It is not a wire format guarantee; only
// equality/hash stability across calls within one process is required.
func EncodeForHashing(v Value) ([]byte, error) {
	if v.Null || v.IsArray {
		return nil, fmt.Errorf("valuecodec: cannot hash a null or array value")
	}
	var buf bytes.Buffer
	if err := writeScalar(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteString writes s using the 7-bit length-prefixed UTF-8 convention
// (spec.md §4.1).
func WriteString(w io.Writer, s string) error {
	if err := Write7BitEncodedInt(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString is the inverse of WriteString.
func ReadString(r io.Reader) (string, error) {
	n, err := Read7BitEncodedInt(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// SizeOfString returns the exact number of bytes WriteString would emit.
func SizeOfString(s string) int {
	return SizeOf7BitEncodedInt(uint32(len(s))) + len(s)
}

// writeScalar writes one non-array, non-null value of the given type in
// the fixed on-disk layout from spec.md §4.1's "Scalar encodings" table.
func writeScalar(w io.Writer, v Value) error {
	switch v.Type {
	case TypeBool:
		b, _ := v.Bool()
		var by byte
		if b {
			by = 1
		}
		_, err := w.Write([]byte{by})
		return err
	case TypeByte:
		by, _ := v.Byte()
		_, err := w.Write([]byte{by})
		return err
	case TypeInt32:
		n, _ := v.Int32()
		return binary.Write(w, binary.LittleEndian, n)
	case TypeUInt32:
		n, _ := v.UInt32()
		return binary.Write(w, binary.LittleEndian, n)
	case TypeInt64:
		n, _ := v.Int64()
		return binary.Write(w, binary.LittleEndian, n)
	case TypeFloat32:
		n, _ := v.Float32()
		return binary.Write(w, binary.LittleEndian, n)
	case TypeFloat64:
		n, _ := v.Float64()
		return binary.Write(w, binary.LittleEndian, n)
	case TypeDecimal128:
		d, _ := v.Decimal()
		bits, err := encodeDecimal128(d)
		if err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, bits)
	case TypeDateTime:
		dt, _ := v.DateTime()
		if err := binary.Write(w, binary.LittleEndian, dt.Year); err != nil {
			return err
		}
		if _, err := w.Write([]byte{dt.Month, dt.Day, dt.Hour, dt.Min, dt.Sec}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, dt.Ms); err != nil {
			return err
		}
		_, err := w.Write([]byte{byte(dt.Kind)})
		return err
	case TypeString:
		s, _ := v.String()
		return WriteString(w, s)
	case TypeGuid:
		g, _ := v.Guid()
		wire := guidToWire(g)
		_, err := w.Write(wire[:])
		return err
	default:
		return fmt.Errorf("valuecodec: unsupported type %v", v.Type)
	}
}

// readScalar reads one non-array, non-null value of type t.
func readScalar(r io.Reader, t Type) (Value, error) {
	switch t {
	case TypeBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return NewBool(b[0] != 0), nil
	case TypeByte:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return NewByte(b[0]), nil
	case TypeInt32:
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NewInt32(n), nil
	case TypeUInt32:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NewUInt32(n), nil
	case TypeInt64:
		var n int64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NewInt64(n), nil
	case TypeFloat32:
		var n float32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NewFloat32(n), nil
	case TypeFloat64:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		return NewFloat64(n), nil
	case TypeDecimal128:
		var bits decimal128Bits
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return Value{}, err
		}
		return NewDecimal(decodeDecimal128(bits)), nil
	case TypeDateTime:
		var dt DateTime
		if err := binary.Read(r, binary.LittleEndian, &dt.Year); err != nil {
			return Value{}, err
		}
		var rest [5]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return Value{}, err
		}
		dt.Month, dt.Day, dt.Hour, dt.Min, dt.Sec = rest[0], rest[1], rest[2], rest[3], rest[4]
		if err := binary.Read(r, binary.LittleEndian, &dt.Ms); err != nil {
			return Value{}, err
		}
		var kind [1]byte
		if _, err := io.ReadFull(r, kind[:]); err != nil {
			return Value{}, err
		}
		dt.Kind = DateTimeKind(kind[0])
		return NewDateTime(dt), nil
	case TypeString:
		s, err := ReadString(r)
		if err != nil {
			return Value{}, err
		}
		return NewString(s), nil
	case TypeGuid:
		var wire [16]byte
		if _, err := io.ReadFull(r, wire[:]); err != nil {
			return Value{}, err
		}
		return NewGuid(guidFromWire(wire)), nil
	default:
		return Value{}, fmt.Errorf("valuecodec: unsupported type %v", t)
	}
}

// sizeOfScalar returns the exact encoded size in bytes of one non-array,
// non-null value.
func sizeOfScalar(v Value) (int, error) {
	if v.Type == TypeString {
		s, _ := v.String()
		return SizeOfString(s), nil
	}
	size := v.Type.FixedSize()
	if size == 0 {
		return 0, fmt.Errorf("valuecodec: unsupported type %v", v.Type)
	}
	return size, nil
}

// WriteValue writes a Value (scalar or array) in field-ordinal position.
// The caller is responsible for null handling via the record codec's
// nullmask; WriteValue never writes for a Null value.
func WriteValue(w io.Writer, v Value) error {
	if v.Null {
		return fmt.Errorf("valuecodec: cannot encode a null value directly")
	}
	if !v.IsArray {
		return writeScalar(w, v)
	}
	elems := v.Elements()
	if err := binary.Write(w, binary.LittleEndian, int32(len(elems))); err != nil {
		return err
	}
	for _, e := range elems {
		ev, err := boxScalar(v.Type, e)
		if err != nil {
			return err
		}
		if err := writeScalar(w, ev); err != nil {
			return err
		}
	}
	return nil
}

// ReadValue reads a Value of the given type and array-ness.
func ReadValue(r io.Reader, t Type, isArray bool) (Value, error) {
	if !isArray {
		return readScalar(r, t)
	}
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return Value{}, err
	}
	if count < 0 {
		return Value{}, fmt.Errorf("valuecodec: negative array length %d", count)
	}
	elems := make([]interface{}, count)
	for i := int32(0); i < count; i++ {
		ev, err := readScalar(r, t)
		if err != nil {
			return Value{}, err
		}
		elems[i] = ev.scalar
	}
	return NewArray(t, elems)
}

// SizeOfValue returns the exact encoded size in bytes of v.
func SizeOfValue(v Value) (int, error) {
	if !v.IsArray {
		return sizeOfScalar(v)
	}
	total := 4
	for _, e := range v.Elements() {
		ev, err := boxScalar(v.Type, e)
		if err != nil {
			return 0, err
		}
		n, err := sizeOfScalar(ev)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func boxScalar(t Type, native interface{}) (Value, error) {
	switch t {
	case TypeBool:
		return NewBool(native.(bool)), nil
	case TypeByte:
		return NewByte(native.(byte)), nil
	case TypeInt32:
		return NewInt32(native.(int32)), nil
	case TypeUInt32:
		return NewUInt32(native.(uint32)), nil
	case TypeInt64:
		return NewInt64(native.(int64)), nil
	case TypeFloat32:
		return NewFloat32(native.(float32)), nil
	case TypeFloat64:
		return NewFloat64(native.(float64)), nil
	case TypeDecimal128:
		return NewDecimal(native.(decimal.Decimal)), nil
	case TypeDateTime:
		return NewDateTime(native.(DateTime)), nil
	case TypeString:
		return NewString(native.(string)), nil
	case TypeGuid:
		return NewGuid(native.(uuid.UUID)), nil
	default:
		return Value{}, fmt.Errorf("valuecodec: unsupported type %v", t)
	}
}
