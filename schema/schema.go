package schema

import (
	"strings"

	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/valuecodec"
)

// Field is one column descriptor, as described in spec.md §3.
type Field struct {
	Name         string
	Type         valuecodec.Type
	IsArray      bool
	Ordinal      int
	IsPrimaryKey bool

	// AutoIncStart is nil when the field is not an autoincrement field.
	// Only valid for non-array Int32 fields.
	AutoIncStart *int32
	CurAutoInc   int32

	Comment string
}

// Autoinc reports whether this field is an autoincrement field.
func (f Field) Autoinc() bool { return f.AutoIncStart != nil }

// Schema is the ordered list of field descriptors for a table, with the
// primary key (if any) always at ordinal 0.
type Schema struct {
	PrimaryKeyName string // "" if the table has no primary key
	Fields         []Field
}

// NewSchema validates fields and returns a Schema with the primary key (if
// any) moved to ordinal 0, matching spec.md §3's "Schema" invariant.
func NewSchema(fields []Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, rowdberr.ErrFieldListIsEmpty
	}

	seen := make(map[string]bool, len(fields))
	pkIdx := -1

	for i, f := range fields {
		if f.Name == "" {
			return nil, rowdberr.ErrFieldNameIsEmpty
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return nil, rowdberr.New(rowdberr.KindFieldNameAlreadyExists, "field %q already exists", f.Name)
		}
		seen[key] = true

		if !f.Type.Valid() {
			return nil, rowdberr.New(rowdberr.KindInvalidTypeInSchema, "field %q has invalid type %v", f.Name, f.Type)
		}

		if f.IsPrimaryKey {
			if pkIdx != -1 {
				return nil, rowdberr.ErrDatabaseAlreadyHasPK
			}
			if f.IsArray || (f.Type != valuecodec.TypeInt32 && f.Type != valuecodec.TypeString) {
				return nil, rowdberr.ErrInvalidPrimaryKeyType
			}
			pkIdx = i
		}

		if f.Autoinc() && (f.IsArray || f.Type != valuecodec.TypeInt32) {
			return nil, rowdberr.New(rowdberr.KindInvalidTypeInSchema, "field %q: autoinc is only valid for non-array Int32 fields", f.Name)
		}
	}

	ordered := make([]Field, 0, len(fields))
	pkName := ""
	if pkIdx != -1 {
		pk := fields[pkIdx]
		pkName = pk.Name
		ordered = append(ordered, pk)
		for i, f := range fields {
			if i != pkIdx {
				ordered = append(ordered, f)
			}
		}
	} else {
		ordered = append(ordered, fields...)
	}

	for i := range ordered {
		ordered[i].Ordinal = i
		if ordered[i].Autoinc() && ordered[i].CurAutoInc == 0 {
			ordered[i].CurAutoInc = *ordered[i].AutoIncStart
		}
	}

	return &Schema{PrimaryKeyName: pkName, Fields: ordered}, nil
}

// HasPrimaryKey reports whether the table has a primary key field.
func (s *Schema) HasPrimaryKey() bool { return s.PrimaryKeyName != "" }

// PrimaryKeyField returns the primary key field descriptor, always at
// ordinal 0 when present.
func (s *Schema) PrimaryKeyField() (*Field, bool) {
	if !s.HasPrimaryKey() {
		return nil, false
	}
	return &s.Fields[0], true
}

// FieldByName looks up a field case-insensitively, returning its ordinal.
func (s *Schema) FieldByName(name string) (*Field, int, bool) {
	lower := strings.ToLower(name)
	for i := range s.Fields {
		if strings.ToLower(s.Fields[i].Name) == lower {
			return &s.Fields[i], i, true
		}
	}
	return nil, -1, false
}

// Clone deep-copies the schema so callers can mutate autoinc counters or
// apply add/drop/rename without aliasing the engine's live schema during a
// compaction pass.
func (s *Schema) Clone() *Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for i := range fields {
		if s.Fields[i].AutoIncStart != nil {
			v := *s.Fields[i].AutoIncStart
			fields[i].AutoIncStart = &v
		}
	}
	return &Schema{PrimaryKeyName: s.PrimaryKeyName, Fields: fields}
}

// NullMaskBytes returns ⌈field_count/8⌉, the size in bytes of a record's
// nullmask prefix.
func (s *Schema) NullMaskBytes() int {
	return (len(s.Fields) + 7) / 8
}
