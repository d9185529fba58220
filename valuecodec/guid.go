package valuecodec

import (
	"fmt"

	"github.com/google/uuid"
)

// NewGuid generates a new random Guid value, grounded on google/uuid's
// version-4 generator.
func NewGuid() uuid.UUID { return uuid.New() }

// guidToWire converts a uuid.UUID (RFC 4122 big-endian byte layout) into the
// 16-byte canonical little-endian-struct layout spec.md §4.1 requires: the
// first three fields (Data1 int32, Data2 int16, Data3 int16) are stored
// little-endian, the last 8 bytes are stored as-is.
func guidToWire(g uuid.UUID) [16]byte {
	var out [16]byte
	out[0], out[1], out[2], out[3] = g[3], g[2], g[1], g[0]
	out[4], out[5] = g[5], g[4]
	out[6], out[7] = g[7], g[6]
	copy(out[8:], g[8:])
	return out
}

// guidFromWire is the inverse of guidToWire.
func guidFromWire(b [16]byte) uuid.UUID {
	var g uuid.UUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:])
	return g
}

// GuidFromValue converts a user-supplied value into a uuid.UUID, accepting
// either a uuid.UUID, a 16-byte slice, or a canonical string form, matching
// the error kinds CantConvertTypeToGuid / GuidTypeMustBeGuidOrByteArray.
func GuidFromValue(v interface{}) (uuid.UUID, error) {
	switch val := v.(type) {
	case uuid.UUID:
		return val, nil
	case [16]byte:
		return uuid.UUID(val), nil
	case []byte:
		if len(val) != 16 {
			return uuid.Nil, fmt.Errorf("valuecodec: guid byte slice must be 16 bytes, got %d", len(val))
		}
		var g uuid.UUID
		copy(g[:], val)
		return g, nil
	case string:
		g, err := uuid.Parse(val)
		if err != nil {
			return uuid.Nil, fmt.Errorf("valuecodec: %w", err)
		}
		return g, nil
	default:
		return uuid.Nil, fmt.Errorf("valuecodec: cannot convert %T to Guid", v)
	}
}
