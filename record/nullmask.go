// Package record implements spec.md §4.2's record codec: the
// `[size:i32][nullmask][fields]` frame, its tombstone/encryption variants,
// and the null bitmask carried ahead of the field values.
package record

import (
	"github.com/bits-and-blooms/bitset"
)

// NullMask tracks, per field ordinal, whether that field's value is null.
// It wraps bits-and-blooms/bitset (the teacher's previously-unwired
// go.mod dependency) for the in-memory Test/Set operations, while
// ToBytes/FromBytes guarantee the exact little-endian-within-byte wire
// layout spec.md §3 requires regardless of the bitset package's internal
// 64-bit word packing.
type NullMask struct {
	bits      *bitset.BitSet
	numFields int
}

// NewNullMask allocates a mask with all fields initially non-null.
func NewNullMask(numFields int) *NullMask {
	return &NullMask{bits: bitset.New(uint(numFields)), numFields: numFields}
}

func (m *NullMask) SetNull(ordinal int, null bool) {
	if null {
		m.bits.Set(uint(ordinal))
	} else {
		m.bits.Clear(uint(ordinal))
	}
}

func (m *NullMask) IsNull(ordinal int) bool {
	return m.bits.Test(uint(ordinal))
}

// ByteSize returns ⌈numFields/8⌉, matching schema.Schema.NullMaskBytes.
func (m *NullMask) ByteSize() int {
	return (m.numFields + 7) / 8
}

// ToBytes serializes the mask to the fixed-width wire layout: one bit per
// field, low-to-high within each byte, zero-padded in the final byte.
func (m *NullMask) ToBytes() []byte {
	out := make([]byte, m.ByteSize())
	for i := 0; i < m.numFields; i++ {
		if m.bits.Test(uint(i)) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// FromBytes parses a wire-format nullmask of numFields bits.
func FromBytes(data []byte, numFields int) *NullMask {
	m := NewNullMask(numFields)
	for i := 0; i < numFields; i++ {
		if data[i/8]&(1<<uint(i%8)) != 0 {
			m.bits.Set(uint(i))
		}
	}
	return m
}

// IsNullAt reads a single bit directly out of a wire-format nullmask buffer
// without allocating a NullMask, used by the primary-key-only fast path in
// the index package.
func IsNullAt(data []byte, ordinal int) bool {
	return data[ordinal/8]&(1<<uint(ordinal%8)) != 0
}
