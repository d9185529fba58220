package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollbackTransRestoresPreTransactionState(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 1.0})
	require.NoError(t, err)

	require.NoError(t, db.BeginTrans())

	_, err = db.Add(Fields{"id": int32(2), "name": "bob", "score": 2.0})
	require.NoError(t, err)
	require.NoError(t, db.UpdateByKey(int32(1), Fields{"score": 99.0}))

	require.NoError(t, db.RollbackTrans())

	_, ok, err := db.GetByKey(int32(2), nil, false)
	require.NoError(t, err)
	require.False(t, ok)

	row, ok, err := db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.0, row.Values["score"])
}

func TestCommitTransKeepsChanges(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.BeginTrans())
	_, err := db.Add(Fields{"id": int32(1), "name": "alice", "score": 1.0})
	require.NoError(t, err)
	require.NoError(t, db.CommitTrans())

	_, ok, err := db.GetByKey(int32(1), nil, false)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBeginTransRejectsNesting(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.BeginTrans())
	err := db.BeginTrans()
	require.Error(t, err)
}

func TestRollbackWithoutTransactionFails(t *testing.T) {
	db := newTestDB(t)
	err := db.RollbackTrans()
	require.Error(t, err)
}

func TestCommitWithoutTransactionFails(t *testing.T) {
	db := newTestDB(t)
	err := db.CommitTrans()
	require.Error(t, err)
}
