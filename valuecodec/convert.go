package valuecodec

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Coerce converts a loosely-typed user value (as would arrive in a
// {field_name -> value} map from a caller, or as a typed-but-wrong-width Go
// numeric literal) into a strictly-typed scalar Value for t. It is the
// engine's single point of "ErrorConvertingValueForField" handling.
func Coerce(t Type, raw interface{}) (Value, error) {
	switch t {
	case TypeBool:
		if b, ok := raw.(bool); ok {
			return NewBool(b), nil
		}
	case TypeByte:
		switch n := raw.(type) {
		case byte:
			return NewByte(n), nil
		case int:
			if n >= 0 && n <= 255 {
				return NewByte(byte(n)), nil
			}
		}
	case TypeInt32:
		switch n := raw.(type) {
		case int32:
			return NewInt32(n), nil
		case int:
			return NewInt32(int32(n)), nil
		case int64:
			return NewInt32(int32(n)), nil
		}
	case TypeUInt32:
		switch n := raw.(type) {
		case uint32:
			return NewUInt32(n), nil
		case int:
			if n >= 0 {
				return NewUInt32(uint32(n)), nil
			}
		}
	case TypeInt64:
		switch n := raw.(type) {
		case int64:
			return NewInt64(n), nil
		case int:
			return NewInt64(int64(n)), nil
		case int32:
			return NewInt64(int64(n)), nil
		}
	case TypeFloat32:
		switch n := raw.(type) {
		case float32:
			return NewFloat32(n), nil
		case float64:
			return NewFloat32(float32(n)), nil
		}
	case TypeFloat64:
		switch n := raw.(type) {
		case float64:
			return NewFloat64(n), nil
		case float32:
			return NewFloat64(float64(n)), nil
		}
	case TypeDecimal128:
		switch n := raw.(type) {
		case decimal.Decimal:
			return NewDecimal(n), nil
		case string:
			d, err := decimal.NewFromString(n)
			if err == nil {
				return NewDecimal(d), nil
			}
		case float64:
			return NewDecimal(decimal.NewFromFloat(n)), nil
		}
	case TypeDateTime:
		if dt, ok := raw.(DateTime); ok {
			return NewDateTime(dt), nil
		}
	case TypeString:
		if s, ok := raw.(string); ok {
			return NewString(s), nil
		}
	case TypeGuid:
		g, err := GuidFromValue(raw)
		if err == nil {
			return NewGuid(g), nil
		}
	}
	return Value{}, fmt.Errorf("valuecodec: cannot convert %T to %s", raw, t)
}

// CoerceArray converts a slice of loosely-typed values into an array Value
// of element type t.
func CoerceArray(t Type, raw []interface{}) (Value, error) {
	elems := make([]interface{}, len(raw))
	for i, r := range raw {
		v, err := Coerce(t, r)
		if err != nil {
			return Value{}, fmt.Errorf("valuecodec: array element %d: %w", i, err)
		}
		elems[i] = v.Scalar()
	}
	return NewArray(t, elems)
}
