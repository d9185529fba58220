package engine

import (
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/flashgrid/rowdb/cipher"
	"github.com/flashgrid/rowdb/index"
	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
)

// compactTo rewrites the whole table against newSchema (and, when they
// differ from the current values, a new format version), staging the
// rewrite in memory first so a failure partway through never touches the
// real backing store: db's fields are only swapped in after the staged
// image is complete, which is what gives schema evolution and Clean their
// rollback-on-failure property (spec.md §4.7/§4.8).
//
// defaults supplies, by lowercased field name, the value a newly added
// field should take in every existing record; fields present in both the
// old and new schema are copied through unchanged.
func (db *DB) compactTo(newSchema *schema.Schema, defaults map[string]interface{}, newMajor, newMinor byte) error {
	staging := stream.NewMemoryBacking()

	h := schema.Header{Major: newMajor, Minor: newMinor, UserVersion: db.header.UserVersion}
	h.SetEncrypted(!cipher.IsNop(db.cfg.cipher))

	if err := schema.WriteHeader(staging, h); err != nil {
		return fmt.Errorf("engine: compaction: failed to write header: %w", err)
	}
	schemaStart, err := staging.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := schema.WriteSchema(staging, newSchema, h.Major); err != nil {
		return fmt.Errorf("engine: compaction: failed to write schema: %w", err)
	}
	dataStart, err := staging.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	newLive := make([]int64, 0, len(db.idx.Live))
	for _, offset := range db.idx.Live {
		oldValues, err := db.decodeAt(offset)
		if err != nil {
			return err
		}
		newValues, err := migrateRecord(db.schema, newSchema, oldValues, defaults)
		if err != nil {
			return err
		}
		onWire, err := db.encodeValuesForWrite(newSchema, newValues)
		if err != nil {
			return err
		}
		frameOffset, err := staging.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if _, err := record.WriteFrame(staging, onWire, false, nil); err != nil {
			return fmt.Errorf("engine: compaction: failed to write frame: %w", err)
		}
		newLive = append(newLive, frameOffset)
	}

	newIdx := index.New(newSchema.HasPrimaryKey())
	newIdx.Live = newLive
	if newIdx.Keyed() {
		if err := newIdx.Rebuild(newSchema, backingReaderAt{staging}, db.cfg.cipher); err != nil {
			return fmt.Errorf("engine: compaction: failed to rebuild negative-lookup filter: %w", err)
		}
	}

	indexStart, err := staging.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := index.Write(staging, indexStart, newIdx, db.userBlob); err != nil {
		return fmt.Errorf("engine: compaction: failed to write index tail: %w", err)
	}

	h.NumRecords = int32(len(newLive))
	h.NumDeleted = 0
	h.IndexStartOffset = int32(indexStart)
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := schema.WriteHeader(staging, h); err != nil {
		return fmt.Errorf("engine: compaction: failed to patch header: %w", err)
	}

	if err := db.replaceBacking(staging.Bytes()); err != nil {
		return err
	}

	db.header = h
	db.schema = newSchema
	db.idx = newIdx
	db.schemaStart = schemaStart
	db.dataStart = dataStart
	db.cursorValid = false

	db.cfg.logger.Info("table compacted", zap.Int("records", len(newLive)))
	return db.backing.Flush()
}

// replaceBacking overwrites db.backing's entire contents with data. Both
// FileBacking and MemoryBacking support truncate-and-rewrite-from-start, so
// this works uniformly regardless of which one db was opened against.
func (db *DB) replaceBacking(data []byte) error {
	if _, err := db.backing.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := db.backing.Truncate(0); err != nil {
		return err
	}
	if _, err := db.backing.Write(data); err != nil {
		return err
	}
	return nil
}

// migrateRecord maps a record encoded against oldSchema into newSchema:
// fields present in both are copied through, fields only in newSchema take
// their supplied default (or null, if none was supplied).
func migrateRecord(oldSchema, newSchema *schema.Schema, old record.Values, defaults map[string]interface{}) (record.Values, error) {
	out := make(record.Values, len(newSchema.Fields))
	for _, f := range newSchema.Fields {
		if _, _, ok := oldSchema.FieldByName(f.Name); ok {
			if v, present := old[f.Name]; present {
				out[f.Name] = v
				continue
			}
		}
		def, ok := defaults[lowerName(f.Name)]
		if !ok || def == nil {
			out[f.Name] = valuecodec.NewNull(f.Type, f.IsArray)
			continue
		}
		if f.IsArray {
			arr, ok := def.([]interface{})
			if !ok {
				return nil, rowdberr.New(rowdberr.KindNonArrayValue, "field %q expects an array default", f.Name)
			}
			v, err := valuecodec.CoerceArray(f.Type, arr)
			if err != nil {
				return nil, rowdberr.Wrap(rowdberr.KindErrorConvertingValue, err, "field %q default", f.Name)
			}
			out[f.Name] = v
			continue
		}
		v, err := valuecodec.Coerce(f.Type, def)
		if err != nil {
			return nil, rowdberr.Wrap(rowdberr.KindErrorConvertingValue, err, "field %q default", f.Name)
		}
		out[f.Name] = v
	}
	return out, nil
}

// encodeValuesForWrite mirrors encodeForWrite but against an explicit
// schema, since compaction encodes against newSchema while db.schema still
// points at the old one until the swap completes.
func (db *DB) encodeValuesForWrite(s *schema.Schema, values record.Values) ([]byte, error) {
	plain, err := record.EncodePayload(s, values)
	if err != nil {
		return nil, err
	}
	if cipher.IsNop(db.cfg.cipher) {
		return plain, nil
	}
	return db.cfg.cipher.Encrypt(plain)
}

func (db *DB) cleanLocked() error {
	return db.compactTo(db.schema.Clone(), nil, db.header.Major, db.header.Minor)
}

// Clean rewrites the table, discarding every tombstoned slot and reclaiming
// its space. Auto-clean (WithAutoCleanThreshold) calls this automatically;
// callers may also invoke it directly.
func (db *DB) Clean() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	return db.cleanLocked()
}

// Upgrade rewrites an older-format table at the current format version,
// lifting the implicit read-only lock Open places on it. It only refuses an
// explicit WithReadOnly(true) caller, not the implicit one, since a table
// opened implicitly read-only specifically needs Upgrade to become writable.
func (db *DB) Upgrade() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return rowdberr.ErrNoOpenDatabase
	}
	if db.cfg.explicitReadOnly {
		return rowdberr.ErrDatabaseReadOnlyMode
	}
	if db.header.Major == schema.CurrentMajor && db.header.Minor == schema.CurrentMinor {
		return rowdberr.ErrSchemaAlreadyUpToDate
	}
	wasReadOnly := db.cfg.readOnly
	db.cfg.readOnly = false
	if err := db.compactTo(db.schema.Clone(), nil, schema.CurrentMajor, schema.CurrentMinor); err != nil {
		db.cfg.readOnly = wasReadOnly
		return err
	}
	db.cfg.readOnly = db.cfg.explicitReadOnly
	return nil
}

// Reindex rebuilds the live index, free list and negative-lookup filter
// from a linear scan of the data region, discarding the persisted tail
// entirely. Unlike Clean, it never rewrites record frames, so it's the
// cheaper repair path when the tail itself is suspect but the data region
// is trusted.
func (db *DB) Reindex() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}

	type scanned struct {
		offset int64
		key    valuecodec.Value
	}
	var live []scanned
	var free []int64

	offset := db.dataStart
	end := int64(db.header.IndexStartOffset)
	for offset < end {
		payload, tombstoned, absSize, err := db.frameAt(offset)
		if err != nil {
			return fmt.Errorf("engine: reindex: failed to read frame at %d: %w", offset, err)
		}
		if tombstoned {
			free = append(free, offset)
			offset += int64(record.SizeOfFrame(int(absSize)))
			continue
		}
		var key valuecodec.Value
		if db.schema.HasPrimaryKey() {
			key, err = record.DecodePrimaryKey(db.schema, payload)
			if err != nil {
				return fmt.Errorf("engine: reindex: failed to decode primary key at %d: %w", offset, err)
			}
		}
		live = append(live, scanned{offset: offset, key: key})
		offset += int64(record.SizeOfFrame(int(absSize)))
	}

	if db.schema.HasPrimaryKey() {
		sort.SliceStable(live, func(i, j int) bool {
			cmp, ok := live[i].key.Compare(live[j].key)
			if !ok {
				return false
			}
			return cmp < 0
		})
	}

	newIdx := index.New(db.schema.HasPrimaryKey())
	newIdx.Live = make([]int64, len(live))
	for i, s := range live {
		newIdx.Live[i] = s.offset
	}
	newIdx.Free = free
	if newIdx.Keyed() {
		if err := newIdx.Rebuild(db.schema, db.readerAt(), db.cfg.cipher); err != nil {
			return fmt.Errorf("engine: reindex: failed to rebuild negative-lookup filter: %w", err)
		}
	}

	db.idx = newIdx
	db.header.NumRecords = int32(len(live))
	db.header.NumDeleted = int32(len(free))
	db.cursorValid = false

	return db.flushLocked()
}
