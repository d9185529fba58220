package index

import (
	"bytes"
	"testing"

	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
	"github.com/stretchr/testify/require"
)

func buildTable(t *testing.T, keys []int32) (*schema.Schema, *bytes.Reader, *Index) {
	t.Helper()
	s, err := schema.NewSchema([]schema.Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	idx := New(true)
	for _, k := range keys {
		offset := int64(buf.Len())
		payload, err := record.EncodePayload(s, record.Values{"id": valuecodec.NewInt32(k)})
		require.NoError(t, err)
		_, err = record.WriteFrame(&buf, payload, false, nil)
		require.NoError(t, err)
		idx.Live = append(idx.Live, offset)
		kb, err := valuecodec.EncodeForHashing(valuecodec.NewInt32(k))
		require.NoError(t, err)
		idx.addToFilter(kb)
	}
	return s, bytes.NewReader(buf.Bytes()), idx
}

func TestLookupFindsExistingKey(t *testing.T) {
	s, r, idx := buildTable(t, []int32{1, 3, 5, 7, 9})

	pos, found, err := Lookup(idx, s, r, nil, valuecodec.NewInt32(5))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, pos)
}

func TestLookupReturnsInsertionPositionWhenAbsent(t *testing.T) {
	s, r, idx := buildTable(t, []int32{1, 3, 5, 7, 9})

	pos, found, err := Lookup(idx, s, r, nil, valuecodec.NewInt32(4))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 2, pos)

	pos, found, err = Lookup(idx, s, r, nil, valuecodec.NewInt32(0))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 0, pos)

	pos, found, err = Lookup(idx, s, r, nil, valuecodec.NewInt32(100))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 5, pos)
}

func TestMightContainNeverFalseNegatives(t *testing.T) {
	_, _, idx := buildTable(t, []int32{2, 4, 6})

	require.True(t, idx.MightContain(valuecodec.NewInt32(2)))
	require.True(t, idx.MightContain(valuecodec.NewInt32(4)))
	require.True(t, idx.MightContain(valuecodec.NewInt32(6)))
}

func TestInsertKeepsLiveSorted(t *testing.T) {
	idx := New(true)
	idx.Insert(0, 100, nil)
	idx.Insert(1, 200, nil)
	idx.Insert(1, 150, nil)

	require.Equal(t, []int64{100, 150, 200}, idx.Live)
}

func TestFirstFitReusesTombstone(t *testing.T) {
	idx := New(false)
	idx.PushFree(10)
	idx.PushFree(20)

	sizes := map[int64]int32{10: -8, 20: -64}
	off, ok, err := idx.FirstFit(32, func(o int64) (int32, error) { return sizes[o], nil })
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(20), off)
	require.Len(t, idx.Free, 1)
	require.Equal(t, int64(10), idx.Free[0])
}

func TestWriteLoadRoundTrip(t *testing.T) {
	idx := New(true)
	idx.Live = []int64{0, 16, 32}
	idx.Free = []int64{48}
	blob := []byte("user-blob")

	mb := stream.NewMemoryBacking()
	require.NoError(t, Write(mb, 0, idx, blob))

	got, gotBlob, err := Load(mb, 0, 3, 1, len(blob), true)
	require.NoError(t, err)
	require.Equal(t, idx.Live, got.Live)
	require.Equal(t, idx.Free, got.Free)
	require.Equal(t, blob, gotBlob)
}
