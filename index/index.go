// Package index implements the in-memory live index and free list
// described in spec.md §4.3: two growable arrays of stream offsets (i32 on
// disk), loaded from the tail region at open and rewritten there by Write.
package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/stream"
	"github.com/flashgrid/rowdb/valuecodec"
)

// Index tracks every live record offset (sorted by primary key when one
// exists) and every tombstoned offset available for reuse.
type Index struct {
	Live []int64
	Free []int64

	keyed  bool
	filter *bloom.BloomFilter // negative-lookup fast path over encoded PK bytes, rebuilt on load; never persisted.
}

// New returns an empty index. keyed must match schema.Schema.HasPrimaryKey();
// an unkeyed table never sorts Live and Lookup always reports "not found".
func New(keyed bool) *Index {
	idx := &Index{keyed: keyed}
	if keyed {
		idx.filter = bloom.NewWithEstimates(1024, 0.01)
	}
	return idx
}

// Keyed reports whether this index maintains primary-key ordering.
func (idx *Index) Keyed() bool { return idx.keyed }

// addToFilter records key's encoded bytes in the negative-lookup filter.
// The filter keeps the size New or Rebuild gave it; adding more keys than
// that estimate raises the false-positive rate but never drops a key.
func (idx *Index) addToFilter(keyBytes []byte) {
	if idx.filter == nil {
		return
	}
	idx.filter.Add(keyBytes)
}

func (idx *Index) rebuildFilter() {
	idx.filter = bloom.NewWithEstimates(uint(len(idx.Live)*2+1024), 0.01)
}

// MightContain is the negative-lookup fast path: when it returns false, key
// is definitely absent and callers may skip the binary search entirely
// (e.g. the engine's by-key get/update/delete). A true result is inconclusive
// (possible false positive) and callers must fall back to Lookup.
func (idx *Index) MightContain(key valuecodec.Value) bool {
	if idx.filter == nil {
		return true
	}
	kb, err := keyBytes(key)
	if err != nil {
		return true
	}
	return idx.filter.Test(kb)
}

// Lookup performs the binary search described in spec.md §4.4: s is the
// table schema (primary key always ordinal 0), r reads frame payloads at
// arbitrary offsets. It returns the position in Live where key was found
// (found=true) or the insertion position that keeps Live sorted
// (found=false).
func Lookup(idx *Index, s *schema.Schema, r io.ReaderAt, enc cipherReader, key valuecodec.Value) (pos int, found bool, err error) {
	if !idx.keyed || len(idx.Live) == 0 {
		return 0, false, nil
	}

	lo, hi := 0, len(idx.Live)
	for lo < hi {
		mid := (lo + hi) / 2
		candidate, cerr := readKeyAt(s, r, enc, idx.Live[mid])
		if cerr != nil {
			return 0, false, cerr
		}
		cmp, ok := candidate.Compare(key)
		if !ok {
			return 0, false, fmt.Errorf("index: primary key values not comparable")
		}
		switch {
		case cmp < 0:
			lo = mid + 1
		case cmp > 0:
			hi = mid
		default:
			return mid, true, nil
		}
	}
	return lo, false, nil
}

// cipherReader is the minimal surface Lookup needs from cipher.Cipher,
// declared locally to avoid a direct dependency on package cipher. A nil
// value means payloads are read as stored.
type cipherReader interface {
	Decrypt([]byte) ([]byte, error)
}

func readKeyAt(s *schema.Schema, r io.ReaderAt, enc cipherReader, offset int64) (valuecodec.Value, error) {
	sr := io.NewSectionReader(r, offset, 1<<62)
	var size int32
	if err := binary.Read(sr, binary.LittleEndian, &size); err != nil {
		return valuecodec.Value{}, err
	}
	absSize := size
	if absSize < 0 {
		absSize = -absSize
	}
	payload := make([]byte, absSize)
	if _, err := io.ReadFull(sr, payload); err != nil {
		return valuecodec.Value{}, err
	}
	if enc != nil {
		var err error
		payload, err = enc.Decrypt(payload)
		if err != nil {
			return valuecodec.Value{}, err
		}
	}
	return record.DecodePrimaryKey(s, payload)
}

func keyBytes(v valuecodec.Value) ([]byte, error) {
	return valuecodec.EncodeForHashing(v)
}

// Insert inserts offset at pos (as returned by Lookup when found=false),
// keeping Live sorted, and updates the negative-lookup filter.
func (idx *Index) Insert(pos int, offset int64, keyBytesForFilter []byte) {
	idx.Live = append(idx.Live, 0)
	copy(idx.Live[pos+1:], idx.Live[pos:])
	idx.Live[pos] = offset
	if keyBytesForFilter != nil {
		idx.addToFilter(keyBytesForFilter)
	}
}

// RemoveLive deletes the Live entry at pos, returning its offset.
func (idx *Index) RemoveLive(pos int) int64 {
	offset := idx.Live[pos]
	idx.Live = append(idx.Live[:pos], idx.Live[pos+1:]...)
	return offset
}

// PushFree appends offset to the free list (first-fit reuse consults this
// slice directly; order doesn't matter for correctness, only for reuse
// locality).
func (idx *Index) PushFree(offset int64) {
	idx.Free = append(idx.Free, offset)
}

// FirstFit scans Free for a tombstone whose absolute size is at least
// need, removing and returning it. sizeAt is supplied by the caller since
// Index has no stream access of its own.
func (idx *Index) FirstFit(need int32, sizeAt func(offset int64) (int32, error)) (offset int64, ok bool, err error) {
	for i, off := range idx.Free {
		sz, serr := sizeAt(off)
		if serr != nil {
			return 0, false, serr
		}
		if sz < 0 {
			sz = -sz
		}
		if sz >= need {
			idx.Free = append(idx.Free[:i], idx.Free[i+1:]...)
			return off, true, nil
		}
	}
	return 0, false, nil
}

// Write persists the index tail exactly as spec.md §4.3 describes: seek to
// indexStart, write len(Live) offsets, then len(Free) offsets, then
// userBlob, then truncate the stream to the new current position. Offsets
// are written as i32 on the wire (spec.md §4.1's "4·num_records" / "4·
// num_deleted" sizing), even though they're tracked as int64 in memory.
func Write(b stream.Backing, indexStart int64, idx *Index, userBlob []byte) error {
	if _, err := b.Seek(indexStart, io.SeekStart); err != nil {
		return err
	}
	for _, off := range idx.Live {
		if err := binary.Write(b, binary.LittleEndian, int32(off)); err != nil {
			return err
		}
	}
	for _, off := range idx.Free {
		if err := binary.Write(b, binary.LittleEndian, int32(off)); err != nil {
			return err
		}
	}
	if len(userBlob) > 0 {
		if _, err := b.Write(userBlob); err != nil {
			return err
		}
	}
	pos, err := b.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return b.Truncate(pos)
}

// Load reads the index tail back, given the counters recorded in the
// header/schema and the number of trailing userBlob bytes to retain.
func Load(b stream.Backing, indexStart int64, numRecords, numDeleted int, userBlobLen int, keyed bool) (*Index, []byte, error) {
	if _, err := b.Seek(indexStart, io.SeekStart); err != nil {
		return nil, nil, err
	}
	idx := New(keyed)

	idx.Live = make([]int64, numRecords)
	for i := range idx.Live {
		var off int32
		if err := binary.Read(b, binary.LittleEndian, &off); err != nil {
			return nil, nil, fmt.Errorf("index: failed to read live offset %d: %w", i, err)
		}
		idx.Live[i] = int64(off)
	}
	idx.Free = make([]int64, numDeleted)
	for i := range idx.Free {
		var off int32
		if err := binary.Read(b, binary.LittleEndian, &off); err != nil {
			return nil, nil, fmt.Errorf("index: failed to read free offset %d: %w", i, err)
		}
		idx.Free[i] = int64(off)
	}

	var userBlob []byte
	if userBlobLen > 0 {
		userBlob = make([]byte, userBlobLen)
		if _, err := io.ReadFull(b, userBlob); err != nil {
			return nil, nil, fmt.Errorf("index: failed to read user blob: %w", err)
		}
	}

	return idx, userBlob, nil
}

// Rebuild repopulates the negative-lookup filter from scratch, used after
// Load (the filter itself is never persisted) and after reindex/clean.
func (idx *Index) Rebuild(s *schema.Schema, r io.ReaderAt, enc cipherReader) error {
	if !idx.keyed {
		return nil
	}
	idx.rebuildFilter()
	for _, off := range idx.Live {
		k, err := readKeyAt(s, r, enc, off)
		if err != nil {
			return err
		}
		kb, err := keyBytes(k)
		if err != nil {
			return err
		}
		idx.filter.Add(kb)
	}
	return nil
}
