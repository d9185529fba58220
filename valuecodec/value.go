// Package valuecodec implements spec.md §4.1's typed value codec: fixed,
// documented byte layouts for twelve scalar/array field types, plus the
// tagged Value variant (design note "Polymorphic field values") that
// carries one of them along with a dedicated null case.
package valuecodec

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value is a tagged variant holding exactly one of the twelve supported
// scalar/array field values, or null. The zero Value is not meaningful;
// always construct through one of the New* functions.
type Value struct {
	Type    Type
	IsArray bool
	Null    bool

	scalar interface{}
	array  []interface{}
}

func NewNull(t Type, isArray bool) Value { return Value{Type: t, IsArray: isArray, Null: true} }

func NewBool(v bool) Value          { return Value{Type: TypeBool, scalar: v} }
func NewByte(v byte) Value          { return Value{Type: TypeByte, scalar: v} }
func NewInt32(v int32) Value        { return Value{Type: TypeInt32, scalar: v} }
func NewUInt32(v uint32) Value      { return Value{Type: TypeUInt32, scalar: v} }
func NewInt64(v int64) Value        { return Value{Type: TypeInt64, scalar: v} }
func NewFloat32(v float32) Value    { return Value{Type: TypeFloat32, scalar: v} }
func NewFloat64(v float64) Value    { return Value{Type: TypeFloat64, scalar: v} }
func NewDecimal(v decimal.Decimal) Value { return Value{Type: TypeDecimal128, scalar: v} }
func NewDateTime(v DateTime) Value   { return Value{Type: TypeDateTime, scalar: v} }
func NewString(v string) Value      { return Value{Type: TypeString, scalar: v} }
func NewGuid(v uuid.UUID) Value      { return Value{Type: TypeGuid, scalar: v} }

// NewArray builds an array-typed Value. Every element of elems must already
// hold the Go type associated with t (e.g. []interface{}{int32(1), int32(2)}
// for TypeInt32); NewArray does not coerce.
func NewArray(t Type, elems []interface{}) (Value, error) {
	for i, e := range elems {
		if _, err := nativeKind(t, e); err != nil {
			return Value{}, fmt.Errorf("valuecodec: array element %d: %w", i, err)
		}
	}
	cp := make([]interface{}, len(elems))
	copy(cp, elems)
	return Value{Type: t, IsArray: true, array: cp}, nil
}

func (v Value) Scalar() interface{}      { return v.scalar }
func (v Value) Elements() []interface{} { return v.array }

func (v Value) Bool() (bool, bool)             { b, ok := v.scalar.(bool); return b, ok }
func (v Value) Byte() (byte, bool)             { b, ok := v.scalar.(byte); return b, ok }
func (v Value) Int32() (int32, bool)           { b, ok := v.scalar.(int32); return b, ok }
func (v Value) UInt32() (uint32, bool)         { b, ok := v.scalar.(uint32); return b, ok }
func (v Value) Int64() (int64, bool)           { b, ok := v.scalar.(int64); return b, ok }
func (v Value) Float32() (float32, bool)       { b, ok := v.scalar.(float32); return b, ok }
func (v Value) Float64() (float64, bool)       { b, ok := v.scalar.(float64); return b, ok }
func (v Value) Decimal() (decimal.Decimal, bool) { b, ok := v.scalar.(decimal.Decimal); return b, ok }
func (v Value) DateTime() (DateTime, bool)     { b, ok := v.scalar.(DateTime); return b, ok }
func (v Value) String() (string, bool)         { b, ok := v.scalar.(string); return b, ok }
func (v Value) Guid() (uuid.UUID, bool)        { b, ok := v.scalar.(uuid.UUID); return b, ok }

// nativeKind validates that value is the Go representation expected for t,
// returning it unchanged (boxed) on success.
func nativeKind(t Type, value interface{}) (interface{}, error) {
	var ok bool
	switch t {
	case TypeBool:
		_, ok = value.(bool)
	case TypeByte:
		_, ok = value.(byte)
	case TypeInt32:
		_, ok = value.(int32)
	case TypeUInt32:
		_, ok = value.(uint32)
	case TypeInt64:
		_, ok = value.(int64)
	case TypeFloat32:
		_, ok = value.(float32)
	case TypeFloat64:
		_, ok = value.(float64)
	case TypeDecimal128:
		_, ok = value.(decimal.Decimal)
	case TypeDateTime:
		_, ok = value.(DateTime)
	case TypeString:
		_, ok = value.(string)
	case TypeGuid:
		_, ok = value.(uuid.UUID)
	default:
		return nil, fmt.Errorf("valuecodec: unknown type %v", t)
	}
	if !ok {
		return nil, fmt.Errorf("valuecodec: value %#v does not match type %s", value, t)
	}
	return value, nil
}

// AsText renders a scalar value's textual representation, used by the
// filter evaluator's CONTAINS operator.
func (v Value) AsText() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case TypeString:
		s, _ := v.String()
		return s
	case TypeGuid:
		g, _ := v.Guid()
		return g.String()
	case TypeDateTime:
		d, _ := v.DateTime()
		return d.String()
	case TypeDecimal128:
		d, _ := v.Decimal()
		return d.String()
	default:
		return fmt.Sprintf("%v", v.scalar)
	}
}

// Equal reports whether two non-null scalar values of the same type are
// equal. Arrays and cross-type comparisons always return false.
func (v Value) Equal(other Value) bool {
	if v.IsArray || other.IsArray || v.Type != other.Type {
		return false
	}
	if v.Type == TypeGuid {
		a, _ := v.Guid()
		b, _ := other.Guid()
		return bytes.Equal(a[:], b[:])
	}
	if v.Type == TypeDecimal128 {
		a, _ := v.Decimal()
		b, _ := other.Decimal()
		return a.Equal(b)
	}
	if v.Type == TypeDateTime {
		a, _ := v.DateTime()
		b, _ := other.DateTime()
		return a.Compare(b) == 0
	}
	return v.scalar == other.scalar
}

// Compare orders two non-null, non-array scalar values of the same type.
// Returns (-1|0|1, true) on success, or (0, false) if the values can't be
// ordered (different types, array-typed, or the type has no numeric/textual
// order defined here — callers fall back to documented filter semantics).
func (v Value) Compare(other Value) (int, bool) {
	if v.IsArray || other.IsArray || v.Type != other.Type {
		return 0, false
	}
	switch v.Type {
	case TypeBool:
		a, _ := v.Bool()
		b, _ := other.Bool()
		return boolCmp(a, b), true
	case TypeByte:
		a, _ := v.Byte()
		b, _ := other.Byte()
		return cmpInt(int(a), int(b)), true
	case TypeInt32:
		a, _ := v.Int32()
		b, _ := other.Int32()
		return cmpInt64(int64(a), int64(b)), true
	case TypeUInt32:
		a, _ := v.UInt32()
		b, _ := other.UInt32()
		return cmpInt64(int64(a), int64(b)), true
	case TypeInt64:
		a, _ := v.Int64()
		b, _ := other.Int64()
		return cmpInt64(a, b), true
	case TypeFloat32:
		a, _ := v.Float32()
		b, _ := other.Float32()
		return cmpFloat(float64(a), float64(b)), true
	case TypeFloat64:
		a, _ := v.Float64()
		b, _ := other.Float64()
		return cmpFloat(a, b), true
	case TypeDecimal128:
		a, _ := v.Decimal()
		b, _ := other.Decimal()
		return a.Cmp(b), true
	case TypeDateTime:
		a, _ := v.DateTime()
		b, _ := other.DateTime()
		return a.Compare(b), true
	case TypeString:
		a, _ := v.String()
		b, _ := other.String()
		return stringCompare(a, b, false), true
	case TypeGuid:
		a, _ := v.Guid()
		b, _ := other.Guid()
		return bytes.Compare(a[:], b[:]), true
	default:
		return 0, false
	}
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
