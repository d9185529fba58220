package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashgrid/rowdb/rowdberr"
)

// User-data type tags, written as the first 4 bytes of the blob trailing
// the index tail (spec.md §4.3's optional user metadata region).
const (
	userDataTagString int32 = 0
	userDataTagBytes  int32 = 1
)

// UserData returns the caller-set metadata blob, or nil if none has ever
// been set.
func (db *DB) UserData() (interface{}, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.userBlob) == 0 {
		return nil, nil
	}
	r := bytes.NewReader(db.userBlob)
	var tag int32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return nil, fmt.Errorf("engine: corrupt user data blob: %w", err)
	}
	payload := make([]byte, r.Len())
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("engine: corrupt user data blob: %w", err)
	}
	switch tag {
	case userDataTagString:
		return string(payload), nil
	case userDataTagBytes:
		return payload, nil
	default:
		return nil, fmt.Errorf("engine: unrecognized user data tag %d", tag)
	}
}

// SetUserData replaces the caller-set metadata blob with v, which must be a
// string or a []byte. The change is written to the backing store on the
// next Flush, same as every other structural change.
func (db *DB) SetUserData(v interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}

	var tag int32
	var payload []byte
	switch t := v.(type) {
	case string:
		tag = userDataTagString
		payload = []byte(t)
	case []byte:
		tag = userDataTagBytes
		payload = t
	default:
		return rowdberr.ErrInvalidMetaDataType
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, tag); err != nil {
		return err
	}
	buf.Write(payload)
	db.userBlob = buf.Bytes()

	return db.maybeAutoFlush()
}
