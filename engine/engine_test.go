package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
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

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Create(stream.NewMemoryBacking(), testSchema(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddAndGetByKey(t *testing.T) {
	db := newTestDB(t)

	pos, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 9.5})
	require.NoError(t, err)
	require.Equal(t, 0, pos)

	row, ok, err := db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", row.Values["name"])
	require.Equal(t, 9.5, row.Values["score"])
}

func TestAddRejectsDuplicateKey(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Add(Fields{"id": int32(1), "name": "alice"})
	require.NoError(t, err)

	_, err = db.Add(Fields{"id": int32(1), "name": "bob"})
	require.Error(t, err)
}

func TestAddRejectsMissingPrimaryKey(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Add(Fields{"name": "alice"})
	require.Error(t, err)
}

func TestGetByKeyNotFound(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.GetByKey(int32(99), nil, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateByKeyMergesPartialFields(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 1.0})
	require.NoError(t, err)

	err = db.UpdateByKey(int32(1), Fields{"score": 2.0})
	require.NoError(t, err)

	row, ok, err := db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", row.Values["name"])
	require.Equal(t, 2.0, row.Values["score"])
}

func TestUpdateGrowingPayloadRelocatesFrame(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "a", "score": 1.0})
	require.NoError(t, err)

	err = db.UpdateByKey(int32(1), Fields{"name": "a much longer name than before"})
	require.NoError(t, err)

	row, ok, err := db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a much longer name than before", row.Values["name"])
	require.EqualValues(t, 1, db.header.NumDeleted)
}

func TestDeleteByKeyReusesSlotOnNextAdd(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 1.0})
	require.NoError(t, err)

	ok, err := db.DeleteByKey(int32(1))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, db.header.NumDeleted)

	_, err = db.Add(Fields{"id": int32(2), "name": "bob", "score": 1.0})
	require.NoError(t, err)
	require.EqualValues(t, 0, db.header.NumDeleted)
}

func TestDeleteByKeyNotFound(t *testing.T) {
	db := newTestDB(t)
	ok, err := db.DeleteByKey(int32(42))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAutoincrementFillsAndAdvances(t *testing.T) {
	start := int32(100)
	s, err := schema.NewSchema([]schema.Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true, AutoIncStart: &start},
		{Name: "name", Type: valuecodec.TypeString},
	})
	require.NoError(t, err)
	db, err := Create(stream.NewMemoryBacking(), s)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Add(Fields{"name": "alice"})
	require.NoError(t, err)
	_, err = db.Add(Fields{"name": "bob"})
	require.NoError(t, err)

	row, ok, err := db.GetByKey(int32(100), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", row.Values["name"])

	row, ok, err = db.GetByKey(int32(101), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bob", row.Values["name"])
}

func TestSuspendAutoIncrementAllowsExplicitValue(t *testing.T) {
	start := int32(1)
	s, err := schema.NewSchema([]schema.Field{
		{Name: "id", Type: valuecodec.TypeInt32, IsPrimaryKey: true, AutoIncStart: &start},
	})
	require.NoError(t, err)
	db, err := Create(stream.NewMemoryBacking(), s)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SuspendAutoIncrement("id", true))
	_, err = db.Add(Fields{"id": int32(500)})
	require.NoError(t, err)

	_, ok, err := db.GetByKey(int32(500), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSelectWhereFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	for i, name := range []string{"carol", "alice", "bob"} {
		_, err := db.Add(Fields{"id": int32(i + 1), "name": name, "score": float64(i)})
		require.NoError(t, err)
	}

	rows, err := db.SelectWhere(`score >= 1`, nil, []OrderKey{{Field: "name"}}, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].Values["name"])
	require.Equal(t, "bob", rows[1].Values["name"])
}

func TestSelectAllOrdersDescending(t *testing.T) {
	db := newTestDB(t)
	for i := 1; i <= 3; i++ {
		_, err := db.Add(Fields{"id": int32(i), "name": "x", "score": float64(i)})
		require.NoError(t, err)
	}

	rows, err := db.SelectAll(nil, []OrderKey{{Field: "score", Descending: true}}, false)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, 3.0, rows[0].Values["score"])
	require.Equal(t, 2.0, rows[1].Values["score"])
	require.Equal(t, 1.0, rows[2].Values["score"])
}

func TestCursorIterationAndInvalidation(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "a", "score": 1.0})
	require.NoError(t, err)
	_, err = db.Add(Fields{"id": int32(2), "name": "b", "score": 2.0})
	require.NoError(t, err)

	require.True(t, db.MoveFirst())
	row, err := db.Current(nil, false)
	require.NoError(t, err)
	require.Equal(t, "a", row.Values["name"])

	require.True(t, db.MoveNext())
	row, err = db.Current(nil, false)
	require.NoError(t, err)
	require.Equal(t, "b", row.Values["name"])

	require.False(t, db.MoveNext())

	require.True(t, db.MoveFirst())
	_, err = db.DeleteByKey(int32(2))
	require.NoError(t, err)
	require.False(t, db.MoveNext())
}

func TestProjectFieldsSelectsSubset(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 9.5})
	require.NoError(t, err)

	row, ok, err := db.GetByKey(int32(1), []string{"name"}, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, row.Values, 1)
	require.Equal(t, "alice", row.Values["name"])
}

func TestOnAddOnUpdateOnDeleteCallbacks(t *testing.T) {
	db := newTestDB(t)
	var added, updated, deleted int
	db.OnAdd(func(pos int) { added++ })
	db.OnUpdate(func(pos int, rec Fields) { updated++ })
	db.OnDelete(func(pos int) { deleted++ })

	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 1.0})
	require.NoError(t, err)
	require.NoError(t, db.UpdateByKey(int32(1), Fields{"score": 2.0}))
	_, err = db.DeleteByKey(int32(1))
	require.NoError(t, err)

	require.Equal(t, 1, added)
	require.Equal(t, 1, updated)
	require.Equal(t, 1, deleted)
}

func TestUserDataRoundtrip(t *testing.T) {
	db := newTestDB(t)

	v, err := db.UserData()
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, db.SetUserData("hello"))
	v, err = db.UserData()
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	require.NoError(t, db.SetUserData([]byte{1, 2, 3}))
	v, err = db.UserData()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, v)
}

func TestSetUserDataRejectsUnsupportedType(t *testing.T) {
	db := newTestDB(t)
	err := db.SetUserData(42)
	require.Error(t, err)
}

func TestSelectAllMatchesExpectedRowSet(t *testing.T) {
	db := newTestDB(t)
	for i, name := range []string{"alice", "bob"} {
		_, err := db.Add(Fields{"id": int32(i + 1), "name": name, "score": float64(i + 1)})
		require.NoError(t, err)
	}

	rows, err := db.SelectAll(nil, []OrderKey{{Field: "id"}}, false)
	require.NoError(t, err)

	want := []Fields{
		{"id": int32(1), "name": "alice", "score": 1.0},
		{"id": int32(2), "name": "bob", "score": 2.0},
	}
	got := make([]Fields, len(rows))
	for i, r := range rows {
		got[i] = r.Values
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectAll row set mismatch (-want +got):\n%s", diff)
	}
}
