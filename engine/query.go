package engine

import (
	"sort"
	"strings"

	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/valuecodec"
)

// Row is one query result: Values holds the decoded, projected field map,
// and Index holds its live-index position when the caller asked for it via
// includeIndex (-1 otherwise).
type Row struct {
	Index  int
	Values Fields
}

// OrderKey is one (field, direction) pair of a multi-key ORDER BY clause.
type OrderKey struct {
	Field      string
	Descending bool
}

// GetByKey fetches the record with the given primary key value. The second
// return value is false when no such record exists.
func (db *DB) GetByKey(key interface{}, fields []string, includeIndex bool) (Row, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return Row{}, false, rowdberr.ErrNoOpenDatabase
	}
	pos, err := db.findByKeyLocked(key)
	if err != nil {
		if rowdberrIsNotFound(err) {
			return Row{}, false, nil
		}
		return Row{}, false, err
	}
	row, err := db.rowAtLocked(pos, fields, includeIndex)
	if err != nil {
		return Row{}, false, err
	}
	return row, true, nil
}

// GetByIndex fetches the record currently at live-index position i.
func (db *DB) GetByIndex(i int, fields []string, includeIndex bool) (Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return Row{}, rowdberr.ErrNoOpenDatabase
	}
	if i < 0 || i >= len(db.idx.Live) {
		return Row{}, rowdberr.ErrIndexOutOfRange
	}
	return db.rowAtLocked(i, fields, includeIndex)
}

func (db *DB) rowAtLocked(pos int, fields []string, includeIndex bool) (Row, error) {
	values, err := db.decodeAt(db.idx.Live[pos])
	if err != nil {
		return Row{}, err
	}
	projected, err := projectFields(db.schema, values, fields)
	if err != nil {
		return Row{}, err
	}
	idx := -1
	if includeIndex {
		idx = pos
	}
	return Row{Index: idx, Values: toFields(projected)}, nil
}

// MoveFirst anchors the cursor at the first live record, reporting whether
// one exists.
func (db *DB) MoveFirst() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.idx.Live) == 0 {
		db.cursorValid = false
		return false
	}
	db.cursorPos = 0
	db.cursorValid = true
	return true
}

// MoveNext advances the cursor by one, reporting whether it's still within
// range. Any intervening mutation invalidates the cursor (spec.md §4.9's
// design note), so MoveNext after a mutation returns false until MoveFirst
// re-anchors it.
func (db *DB) MoveNext() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.cursorValid {
		return false
	}
	db.cursorPos++
	if db.cursorPos >= len(db.idx.Live) {
		db.cursorValid = false
		return false
	}
	return true
}

// Current decodes the record the cursor is presently anchored on.
func (db *DB) Current(fields []string, includeIndex bool) (Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.cursorValid || db.cursorPos < 0 || db.cursorPos >= len(db.idx.Live) {
		return Row{}, rowdberr.ErrIteratorPastEndOfFile
	}
	return db.rowAtLocked(db.cursorPos, fields, includeIndex)
}

// decodedRow pairs a live-index position with its fully decoded record,
// kept in its native record.Values shape so ordering can use
// valuecodec.Value.Compare before projection discards type information.
type decodedRow struct {
	pos    int
	values record.Values
}

// SelectAll decodes every live record, in live-index order, applying
// projection and ordering.
func (db *DB) SelectAll(fields []string, orderBy []OrderKey, includeIndex bool) ([]Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, rowdberr.ErrNoOpenDatabase
	}
	decoded := make([]decodedRow, 0, len(db.idx.Live))
	for pos, offset := range db.idx.Live {
		values, err := db.decodeAt(offset)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, decodedRow{pos: pos, values: values})
	}
	return db.finishSelect(decoded, fields, orderBy, includeIndex)
}

// SelectWhere decodes every live record matching the filter expression.
func (db *DB) SelectWhere(filterExpr string, fields []string, orderBy []OrderKey, includeIndex bool) ([]Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, rowdberr.ErrNoOpenDatabase
	}
	ev, err := db.newEvaluatorLocked(filterExpr)
	if err != nil {
		return nil, err
	}
	decoded := make([]decodedRow, 0)
	for pos, offset := range db.idx.Live {
		values, err := db.decodeAt(offset)
		if err != nil {
			return nil, err
		}
		ok, err := ev.Match(values)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		decoded = append(decoded, decodedRow{pos: pos, values: values})
	}
	return db.finishSelect(decoded, fields, orderBy, includeIndex)
}

// finishSelect applies ORDER BY (on the still-fully-typed decoded rows),
// then projects and converts to the caller-facing Row shape.
func (db *DB) finishSelect(decoded []decodedRow, fields []string, orderBy []OrderKey, includeIndex bool) ([]Row, error) {
	if err := db.sortDecoded(decoded, orderBy); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(decoded))
	for _, d := range decoded {
		projected, err := projectFields(db.schema, d.values, fields)
		if err != nil {
			return nil, err
		}
		idx := -1
		if includeIndex {
			idx = d.pos
		}
		rows = append(rows, Row{Index: idx, Values: toFields(projected)})
	}
	return rows, nil
}

func (db *DB) sortDecoded(decoded []decodedRow, orderBy []OrderKey) error {
	if len(orderBy) == 0 {
		return nil
	}
	type key struct {
		name       string
		descending bool
	}
	keys := make([]key, 0, len(orderBy))
	for _, k := range orderBy {
		f, _, ok := db.schema.FieldByName(k.Field)
		if !ok {
			return rowdberr.New(rowdberr.KindInvalidOrderByFieldName, "unknown field %q", k.Field)
		}
		if f.IsArray {
			return rowdberr.New(rowdberr.KindCannotOrderByArrayField, "field %q is an array field", k.Field)
		}
		keys = append(keys, key{name: f.Name, descending: k.Descending})
	}
	sort.SliceStable(decoded, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(decoded[i].values[k.name], decoded[j].values[k.name])
			if k.descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return nil
}

// compareValues orders two decoded field values, treating null as less
// than any non-null value of the same field, and falling back to equal
// when the two values aren't otherwise comparable.
func compareValues(a, b valuecodec.Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	cmp, ok := a.Compare(b)
	if !ok {
		return 0
	}
	return cmp
}

// projectFields returns a subset of full containing exactly the requested
// field names (case-insensitive, schema-cased in the output), or all
// fields when requested is nil. Unknown or duplicated names fail.
func projectFields(s *schema.Schema, full record.Values, requested []string) (record.Values, error) {
	if requested == nil {
		return full, nil
	}
	out := make(record.Values, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		f, _, ok := s.FieldByName(name)
		if !ok {
			return nil, rowdberr.New(rowdberr.KindInvalidFieldName, "unknown field %q", name)
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return nil, rowdberr.New(rowdberr.KindFieldSpecifiedTwice, "field %q specified twice", f.Name)
		}
		seen[key] = true
		out[f.Name] = full[f.Name]
	}
	return out, nil
}
