package engine

import (
	"io"

	"github.com/flashgrid/rowdb/index"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
)

// transaction holds a full byte-for-byte snapshot of the backing store
// taken at BeginTrans, restored verbatim by RollbackTrans. Whole-store
// copying (rather than an operation log) mirrors how Clean/compaction
// already stage a full rewrite in memory before swapping it in.
type transaction struct {
	snapshot []byte
}

// BeginTrans flushes pending state, then snapshots the entire backing store
// so RollbackTrans can restore it exactly. Only one transaction may be open
// at a time per handle.
func (db *DB) BeginTrans() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	if db.tx != nil {
		return rowdberr.ErrTransactionAlreadyOpen
	}
	if err := db.flushLocked(); err != nil {
		return err
	}

	total, err := db.backing.Len()
	if err != nil {
		return err
	}
	snapshot := make([]byte, total)
	if err := stream.ReadAt(db.backing, 0, snapshot); err != nil {
		return err
	}

	db.tx = &transaction{snapshot: snapshot}
	return nil
}

// CommitTrans discards the open transaction's snapshot, making every
// mutation issued since BeginTrans permanent.
func (db *DB) CommitTrans() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.tx == nil {
		return rowdberr.ErrNoCurrentTransaction
	}
	db.tx = nil
	return db.flushLocked()
}

// RollbackTrans restores the backing store to exactly how it looked at
// BeginTrans and reloads every in-memory structure derived from it.
func (db *DB) RollbackTrans() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.tx == nil {
		return rowdberr.ErrNoCurrentTransaction
	}
	snapshot := db.tx.snapshot
	db.tx = nil

	if err := db.replaceBacking(snapshot); err != nil {
		return err
	}
	return db.reloadLocked()
}

// reloadLocked re-parses the header, schema and index tail from the
// current contents of db.backing, the same steps Open performs on a fresh
// handle, used after RollbackTrans restores the backing store's bytes out
// from under the in-memory structures derived from it.
func (db *DB) reloadLocked() error {
	if _, err := db.backing.Seek(0, io.SeekStart); err != nil {
		return err
	}
	h, err := schema.ReadHeader(db.backing)
	if err != nil {
		return err
	}
	schemaStart, err := db.backing.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	sc, err := schema.ReadSchema(db.backing, h.Major)
	if err != nil {
		return err
	}
	dataStart, err := db.backing.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	totalLen, err := db.backing.Len()
	if err != nil {
		return err
	}
	liveFreeBytes := int64(h.NumRecords+h.NumDeleted) * 4
	userBlobLen := int(totalLen - int64(h.IndexStartOffset) - liveFreeBytes)
	if userBlobLen < 0 {
		return rowdberr.New(rowdberr.KindInvalidOperation, "reload: corrupt index tail after rollback")
	}

	idx, userBlob, err := index.Load(db.backing, int64(h.IndexStartOffset), int(h.NumRecords), int(h.NumDeleted), userBlobLen, sc.HasPrimaryKey())
	if err != nil {
		return err
	}
	if err := idx.Rebuild(sc, db.readerAt(), db.cfg.cipher); err != nil {
		return err
	}

	db.header = h
	db.schema = sc
	db.idx = idx
	db.schemaStart = schemaStart
	db.dataStart = dataStart
	db.userBlob = userBlob
	db.cursorValid = false
	return nil
}
