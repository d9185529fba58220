package schema

import (
	"bytes"
	"testing"

	"github.com/flashgrid/rowdb/valuecodec"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaMovesPrimaryKeyToOrdinalZero(t *testing.T) {
	start := int32(1)
	s, err := NewSchema([]Field{
		{Name: "name", Type: valuecodec.TypeString},
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true, AutoIncStart: &start},
	})
	require.NoError(t, err)
	require.Equal(t, "id", s.Fields[0].Name)
	require.Equal(t, 0, s.Fields[0].Ordinal)
	require.Equal(t, "name", s.Fields[1].Name)
	require.Equal(t, 1, s.Fields[1].Ordinal)
	require.Equal(t, int32(1), s.Fields[0].CurAutoInc)
}

func TestNewSchemaRejectsArrayPrimaryKey(t *testing.T) {
	_, err := NewSchema([]Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsArray: true, IsPrimaryKey: true},
	})
	require.Error(t, err)
}

func TestNewSchemaRejectsDuplicateNamesCaseInsensitive(t *testing.T) {
	_, err := NewSchema([]Field{
		{Name: "Name", Type: valuecodec.TypeString},
		{Name: "name", Type: valuecodec.TypeString},
	})
	require.Error(t, err)
}

func TestSchemaDescriptorRoundTrip(t *testing.T) {
	start := int32(5)
	s, err := NewSchema([]Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true, AutoIncStart: &start},
		{Name: "tags", Type: valuecodec.TypeString, IsArray: true, Comment: "free-form labels"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, s, CurrentMajor))

	got, err := ReadSchema(&buf, CurrentMajor)
	require.NoError(t, err)

	require.Equal(t, s.PrimaryKeyName, got.PrimaryKeyName)
	require.Len(t, got.Fields, 2)
	require.True(t, got.Fields[0].IsPrimaryKey)
	require.True(t, got.Fields[0].Autoinc())
	require.Equal(t, int32(5), *got.Fields[0].AutoIncStart)
	require.True(t, got.Fields[1].IsArray)
	require.Equal(t, "free-form labels", got.Fields[1].Comment)
}

func TestHeaderRoundTripMajor6(t *testing.T) {
	h := Header{Major: CurrentMajor, Minor: CurrentMinor, NumRecords: 3, NumDeleted: 1, IndexStartOffset: 1024, UserVersion: 1.5}
	h.SetEncrypted(true)

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, h))

	raw := buf.Bytes()
	require.Equal(t, byte(0xBE), raw[0])
	require.Equal(t, CurrentMajor, raw[4])
	require.Equal(t, CurrentMinor, raw[5])

	got, err := ReadHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.True(t, got.Encrypted())
}
