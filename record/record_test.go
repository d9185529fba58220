package record

import (
	"bytes"
	"testing"

	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/valuecodec"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewSchema([]schema.Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true},
		{Name: "name", Type: valuecodec.TypeString},
		{Name: "score", Type: valuecodec.TypeFloat64},
	})
	require.NoError(t, err)
	return s
}

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	s := testSchema(t)
	rec := Values{
		"id":    valuecodec.NewInt32(7),
		"name":  valuecodec.NewString("ann"),
		"score": valuecodec.NewNull(valuecodec.TypeFloat64, false),
	}

	payload, err := EncodePayload(s, rec)
	require.NoError(t, err)

	size, err := SizeOfPayload(s, rec)
	require.NoError(t, err)
	require.Equal(t, size, len(payload))

	got, err := DecodePayload(s, payload)
	require.NoError(t, err)

	require.True(t, got["id"].Equal(rec["id"]))
	require.True(t, got["name"].Equal(rec["name"]))
	require.True(t, got["score"].Null)
}

func TestDecodePrimaryKeySkipsOtherFields(t *testing.T) {
	s := testSchema(t)
	rec := Values{
		"id":    valuecodec.NewInt32(42),
		"name":  valuecodec.NewString("a very long name indeed"),
		"score": valuecodec.NewFloat64(9.5),
	}
	payload, err := EncodePayload(s, rec)
	require.NoError(t, err)

	pk, err := DecodePrimaryKey(s, payload)
	require.NoError(t, err)
	n, _ := pk.Int32()
	require.Equal(t, int32(42), n)
}

func TestFrameTombstoneSign(t *testing.T) {
	s := testSchema(t)
	payload, err := EncodePayload(s, Values{"id": valuecodec.NewInt32(1), "name": valuecodec.NewString("x"), "score": valuecodec.NewFloat64(1)})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = WriteFrame(&buf, payload, false, nil)
	require.NoError(t, err)

	got, tombstoned, absSize, err := ReadFrameAt(&buf, nil)
	require.NoError(t, err)
	require.False(t, tombstoned)
	require.Equal(t, int32(len(payload)), absSize)
	require.Equal(t, payload, got)

	buf.Reset()
	_, err = WriteFrame(&buf, payload, true, nil)
	require.NoError(t, err)
	raw := buf.Bytes()
	require.Less(t, int8(raw[3]), int8(0)) // sign bit of the big-endian-most byte of a little-endian negative i32
}

func TestFrameEncryptionRoundTrip(t *testing.T) {
	s := testSchema(t)
	payload, err := EncodePayload(s, Values{"id": valuecodec.NewInt32(1), "name": valuecodec.NewString("secret"), "score": valuecodec.NewFloat64(1)})
	require.NoError(t, err)

	c := xorCipher{key: 0x5a}
	var buf bytes.Buffer
	_, err = WriteFrame(&buf, payload, false, c)
	require.NoError(t, err)

	require.NotContains(t, buf.String(), "secret")

	got, tombstoned, _, err := ReadFrameAt(&buf, c)
	require.NoError(t, err)
	require.False(t, tombstoned)
	require.Equal(t, payload, got)
}

// xorCipher is a minimal test-only Cipher implementation.
type xorCipher struct{ key byte }

func (c xorCipher) Encrypt(p []byte) ([]byte, error) { return c.xor(p), nil }
func (c xorCipher) Decrypt(p []byte) ([]byte, error) { return c.xor(p), nil }
func (c xorCipher) xor(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = b ^ c.key
	}
	return out
}
