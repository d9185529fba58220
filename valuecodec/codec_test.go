package valuecodec

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"bool-true", NewBool(true)},
		{"bool-false", NewBool(false)},
		{"byte", NewByte(200)},
		{"int32-neg", NewInt32(-12345)},
		{"uint32", NewUInt32(4294967290)},
		{"int64", NewInt64(-9223372036854775800)},
		{"float32", NewFloat32(3.14)},
		{"float64", NewFloat64(2.71828182845)},
		{"decimal", NewDecimal(decimal.RequireFromString("-123456789.987654"))},
		{"datetime", NewDateTime(DateTime{Year: 2024, Month: 2, Day: 29, Hour: 23, Min: 59, Sec: 59, Ms: 999, Kind: KindUTC})},
		{"string", NewString("hello, 世界")},
		{"string-empty", NewString("")},
		{"guid", NewGuid(uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteValue(&buf, tt.v))

			wantSize, err := SizeOfValue(tt.v)
			require.NoError(t, err)
			require.Equal(t, wantSize, buf.Len())

			got, err := ReadValue(&buf, tt.v.Type, false)
			require.NoError(t, err)
			require.True(t, tt.v.Equal(got), "got %#v want %#v", got, tt.v)
		})
	}
}

func TestArrayRoundTrip(t *testing.T) {
	v, err := NewArray(TypeInt32, []interface{}{int32(1), int32(-2), int32(3)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteValue(&buf, v))

	got, err := ReadValue(&buf, TypeInt32, true)
	require.NoError(t, err)
	require.Equal(t, v.Elements(), got.Elements())
}

func TestEmptyArrayRoundTrip(t *testing.T) {
	v, err := NewArray(TypeString, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteValue(&buf, v))
	require.Equal(t, 4, buf.Len())

	got, err := ReadValue(&buf, TypeString, true)
	require.NoError(t, err)
	require.Len(t, got.Elements(), 0)
}

func TestCompareNumericIsNumericNotLexical(t *testing.T) {
	a := NewInt32(9)
	b := NewInt32(10)
	cmp, ok := a.Compare(b)
	require.True(t, ok)
	require.Equal(t, -1, cmp, "9 < 10 numerically even though '9' > '10' lexically")
}

func TestStringCompareCaseInsensitive(t *testing.T) {
	require.Equal(t, 0, StringCompare("Ann", "ann", true))
	require.NotEqual(t, 0, StringCompare("Ann", "ann", false))
}
