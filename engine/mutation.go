package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flashgrid/rowdb/cipher"
	"github.com/flashgrid/rowdb/filter"
	"github.com/flashgrid/rowdb/index"
	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
)

// frameAt reads the frame at offset, seeking the backing store there first.
func (db *DB) frameAt(offset int64) (payload []byte, tombstoned bool, absSize int32, err error) {
	if _, err := db.backing.Seek(offset, 0); err != nil {
		return nil, false, 0, err
	}
	return record.ReadFrameAt(db.backing, db.cfg.cipher)
}

// sizeAt reads just the [size:i32] prefix at offset, used by the free-list
// first-fit search to learn a tombstone's slot capacity without decoding
// its payload.
func (db *DB) sizeAt(offset int64) (int32, error) {
	var buf [4]byte
	if err := stream.ReadAt(db.backing, offset, buf[:]); err != nil {
		return 0, err
	}
	n := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16 | int32(buf[3])<<24
	return n, nil
}

// writeFrameAt writes an already-encrypted (or plaintext, if unencrypted)
// on-wire payload as a live frame at offset, returning the total bytes the
// frame occupies (size prefix + payload).
func (db *DB) writeFrameAt(offset int64, onWire []byte) (int64, error) {
	if _, err := db.backing.Seek(offset, 0); err != nil {
		return 0, err
	}
	n, err := record.WriteFrame(db.backing, onWire, false, nil)
	if err != nil {
		return 0, err
	}
	return int64(record.SizeOfFrame(n)), nil
}

// encodeForWrite runs the record through EncodePayload and, if a cipher is
// configured, encrypts it, returning the exact bytes that will sit on disk
// after the size prefix.
func (db *DB) encodeForWrite(values record.Values) ([]byte, error) {
	plain, err := record.EncodePayload(db.schema, values)
	if err != nil {
		return nil, err
	}
	if cipher.IsNop(db.cfg.cipher) {
		return plain, nil
	}
	return db.cfg.cipher.Encrypt(plain)
}

func (db *DB) decodeAt(offset int64) (record.Values, error) {
	payload, tombstoned, _, err := db.frameAt(offset)
	if err != nil {
		return nil, err
	}
	if tombstoned {
		return nil, fmt.Errorf("engine: live index points at a tombstoned frame at offset %d", offset)
	}
	return record.DecodePayload(db.schema, payload)
}

// Add inserts a new record, filling any non-suspended autoincrement fields
// and rejecting a duplicate primary key, per spec.md §4.5.
func (db *DB) Add(fields Fields) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return 0, err
	}

	raw := db.fillAutoinc(fields)
	values, err := coerceFields(db.schema, raw, false)
	if err != nil {
		return 0, err
	}

	pos := len(db.idx.Live)
	var keyBytes []byte
	if db.schema.HasPrimaryKey() {
		pkField, _ := db.schema.PrimaryKeyField()
		key := values[pkField.Name]
		if key.Null {
			return 0, rowdberr.ErrMissingPrimaryKey
		}
		foundPos, found, err := index.Lookup(db.idx, db.schema, db.readerAt(), db.cfg.cipher, key)
		if err != nil {
			return 0, err
		}
		if found {
			return 0, rowdberr.ErrDuplicatePrimaryKey
		}
		pos = foundPos
		keyBytes, err = valuecodec.EncodeForHashing(key)
		if err != nil {
			return 0, err
		}
	}

	onWire, err := db.encodeForWrite(values)
	if err != nil {
		return 0, err
	}
	need := int32(len(onWire))

	offset, reused, err := db.idx.FirstFit(need, db.sizeAt)
	if err != nil {
		return 0, err
	}
	if !reused {
		offset = int64(db.header.IndexStartOffset)
	}
	frameLen, err := db.writeFrameAt(offset, onWire)
	if err != nil {
		return 0, err
	}
	if !reused {
		db.header.IndexStartOffset = int32(offset + frameLen)
	}

	db.idx.Insert(pos, offset, keyBytes)
	db.header.NumRecords++
	if reused {
		db.header.NumDeleted--
	}
	db.cursorValid = false

	if err := db.maybeAutoFlush(); err != nil {
		return 0, err
	}
	db.invokeAdd(pos)
	return pos, nil
}

// fillAutoinc returns a copy of fields with every non-suspended autoinc
// field the caller omitted (or set to nil) filled from its current counter,
// advancing that counter. Suspended or caller-supplied values pass through
// untouched.
func (db *DB) fillAutoinc(fields Fields) Fields {
	out := make(Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	for i := range db.schema.Fields {
		f := &db.schema.Fields[i]
		if !f.Autoinc() || db.suspendedAutoinc[lowerName(f.Name)] {
			continue
		}
		if v, ok := lookupFold(out, f.Name); ok && v != nil {
			continue
		}
		out[f.Name] = f.CurAutoInc
		f.CurAutoInc++
	}
	return out
}

func lowerName(s string) string { return strings.ToLower(s) }

// UpdateByKey merges fields into the record with the given primary key
// value, leaving fields absent from the map unchanged.
func (db *DB) UpdateByKey(key interface{}, fields Fields) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	pos, err := db.findByKeyLocked(key)
	if err != nil {
		return err
	}
	return db.updateAtLocked(pos, fields)
}

// UpdateByIndex merges fields into the record currently at live-index
// position i.
func (db *DB) UpdateByIndex(i int, fields Fields) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= len(db.idx.Live) {
		return rowdberr.ErrIndexOutOfRange
	}
	return db.updateAtLocked(i, fields)
}

// UpdateWhere applies fields to every record matching the filter
// expression, returning the number of records updated.
func (db *DB) UpdateWhere(filterExpr string, fields Fields) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return 0, err
	}
	ev, err := db.newEvaluatorLocked(filterExpr)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := 0; i < len(db.idx.Live); i++ {
		values, err := db.decodeAt(db.idx.Live[i])
		if err != nil {
			return count, err
		}
		ok, err := ev.Match(values)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		if err := db.updateAtLocked(i, fields); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (db *DB) findByKeyLocked(key interface{}) (int, error) {
	pkField, ok := db.schema.PrimaryKeyField()
	if !ok {
		return 0, rowdberr.ErrMissingPrimaryKey
	}
	kv, err := valuecodec.Coerce(pkField.Type, key)
	if err != nil {
		return 0, rowdberr.Wrap(rowdberr.KindInvalidKeyFieldType, err, "primary key value")
	}
	if !db.idx.MightContain(kv) {
		return 0, rowdberr.ErrPrimaryKeyValueNotFound
	}
	pos, found, err := index.Lookup(db.idx, db.schema, db.readerAt(), db.cfg.cipher, kv)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, rowdberr.ErrPrimaryKeyValueNotFound
	}
	return pos, nil
}

// updateAtLocked does the merge-and-rewrite described in spec.md §4.5's
// Update procedure. mu is already held.
func (db *DB) updateAtLocked(pos int, fields Fields) error {
	offset := db.idx.Live[pos]
	old, err := db.decodeAt(offset)
	if err != nil {
		return err
	}

	partial, err := coerceFields(db.schema, fields, true)
	if err != nil {
		return err
	}
	for name, v := range partial {
		old[name] = v
	}

	onWire, err := db.encodeForWrite(old)
	if err != nil {
		return err
	}
	newSize := int32(len(onWire))

	oldSize, err := db.sizeAt(offset)
	if err != nil {
		return err
	}
	if oldSize < 0 {
		oldSize = -oldSize
	}

	if newSize <= oldSize {
		if _, err := db.writeFrameAt(offset, onWire); err != nil {
			return err
		}
	} else {
		newOffset, reused, err := db.idx.FirstFit(newSize, db.sizeAt)
		if err != nil {
			return err
		}
		if !reused {
			newOffset = int64(db.header.IndexStartOffset)
		}
		frameLen, err := db.writeFrameAt(newOffset, onWire)
		if err != nil {
			return err
		}
		if !reused {
			db.header.IndexStartOffset = int32(newOffset + frameLen)
		} else {
			db.header.NumDeleted--
		}
		if err := record.RewriteSizePrefix(db.backing, offset, -oldSize); err != nil {
			return err
		}
		db.idx.PushFree(offset)
		db.idx.Live[pos] = newOffset
		db.header.NumDeleted++
	}

	db.cursorValid = false
	if err := db.maybeAutoFlush(); err != nil {
		return err
	}
	if err := db.maybeAutoClean(); err != nil {
		return err
	}
	db.invokeUpdate(pos, toFields(old))
	return nil
}

// DeleteByKey tombstones the record with the given primary key value,
// reporting whether one was found.
func (db *DB) DeleteByKey(key interface{}) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return false, err
	}
	pos, err := db.findByKeyLocked(key)
	if err != nil {
		if rowdberrIsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := db.deleteAtLocked(pos); err != nil {
		return false, err
	}
	return true, nil
}

func rowdberrIsNotFound(err error) bool {
	return errors.Is(err, rowdberr.ErrPrimaryKeyValueNotFound)
}

// DeleteByIndex tombstones the record currently at live-index position i.
func (db *DB) DeleteByIndex(i int) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return false, err
	}
	if i < 0 || i >= len(db.idx.Live) {
		return false, rowdberr.ErrIndexOutOfRange
	}
	if err := db.deleteAtLocked(i); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteWhere tombstones every record matching the filter expression,
// returning the number deleted.
func (db *DB) DeleteWhere(filterExpr string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return 0, err
	}
	ev, err := db.newEvaluatorLocked(filterExpr)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := 0; i < len(db.idx.Live); {
		values, err := db.decodeAt(db.idx.Live[i])
		if err != nil {
			return count, err
		}
		ok, err := ev.Match(values)
		if err != nil {
			return count, err
		}
		if !ok {
			i++
			continue
		}
		if err := db.deleteAtLocked(i); err != nil {
			return count, err
		}
		count++
		// deleteAtLocked removed Live[i]; the next candidate has shifted
		// into position i, so don't advance.
	}
	return count, nil
}

// DeleteAll tombstones every live record, returning the count removed.
func (db *DB) DeleteAll() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return 0, err
	}
	count := 0
	for len(db.idx.Live) > 0 {
		if err := db.deleteAtLocked(0); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (db *DB) deleteAtLocked(pos int) error {
	offset := db.idx.RemoveLive(pos)
	size, err := db.sizeAt(offset)
	if err != nil {
		return err
	}
	if size < 0 {
		return fmt.Errorf("engine: live index at position %d already points at a tombstone", pos)
	}
	if err := record.RewriteSizePrefix(db.backing, offset, -size); err != nil {
		return err
	}
	db.idx.PushFree(offset)
	db.header.NumRecords--
	db.header.NumDeleted++
	db.cursorValid = false

	if err := db.maybeAutoFlush(); err != nil {
		return err
	}
	if err := db.maybeAutoClean(); err != nil {
		return err
	}
	db.invokeDelete(pos)
	return nil
}

func (db *DB) newEvaluatorLocked(filterExpr string) (*filter.Evaluator, error) {
	ast, err := filter.Parse(filterExpr)
	if err != nil {
		return nil, err
	}
	return filter.NewEvaluator(ast, db.schema)
}

func (db *DB) invokeAdd(pos int) {
	if db.onAdd == nil {
		return
	}
	defer func() { recover() }()
	db.onAdd(pos)
}

func (db *DB) invokeUpdate(pos int, fields Fields) {
	if db.onUpdate == nil {
		return
	}
	defer func() { recover() }()
	db.onUpdate(pos, fields)
}

func (db *DB) invokeDelete(pos int) {
	if db.onDelete == nil {
		return
	}
	defer func() { recover() }()
	db.onDelete(pos)
}

// SuspendAutoIncrement toggles whether Add consumes and advances field's
// autoincrement counter, matching the "externally suspended" wording in
// spec.md §3/§4.5.
func (db *DB) SuspendAutoIncrement(fieldName string, suspended bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, _, ok := db.schema.FieldByName(fieldName)
	if !ok {
		return rowdberr.ErrInvalidFieldName
	}
	if !f.Autoinc() {
		return rowdberr.New(rowdberr.KindInvalidFieldName, "field %q is not an autoincrement field", fieldName)
	}
	db.suspendedAutoinc[lowerName(fieldName)] = suspended
	return nil
}

// OnAdd registers a callback invoked with the new record's live-index
// position after every successful Add. Panics inside cb are swallowed, per
// spec.md §6.
func (db *DB) OnAdd(cb func(pos int)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.onAdd = cb
}

// OnUpdate registers a callback invoked after every successful update with
// the merged record as it now stands.
func (db *DB) OnUpdate(cb func(pos int, rec Fields)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.onUpdate = cb
}

// OnDelete registers a callback invoked after every successful delete.
func (db *DB) OnDelete(cb func(pos int)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.onDelete = cb
}
