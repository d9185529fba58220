package engine

import (
	"strings"

	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
)

// AddFields appends one or more fields to the schema, giving every existing
// live record the supplied default for each new field. Per spec.md §4.7,
// this is refused once any record has been tombstoned: a free-list slot's
// frame size was computed against the old field count, and backfilling a
// deleted-but-not-yet-reclaimed frame would need its own compaction pass.
func (db *DB) AddFields(fields []schema.Field, defaults []interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	if db.header.NumDeleted > 0 {
		return rowdberr.ErrCantAlterWithDeleted
	}
	if len(fields) != len(defaults) {
		return rowdberr.New(rowdberr.KindInvalidOperation, "AddFields: %d fields but %d defaults", len(fields), len(defaults))
	}

	newSchema := db.schema.Clone()
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return rowdberr.ErrFieldNameIsEmpty
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return rowdberr.New(rowdberr.KindFieldSpecifiedTwice, "field %q specified twice", f.Name)
		}
		seen[key] = true
		if _, _, ok := newSchema.FieldByName(f.Name); ok {
			return rowdberr.New(rowdberr.KindFieldNameAlreadyExists, "field %q already exists", f.Name)
		}
		if f.IsPrimaryKey {
			return rowdberr.ErrPrimaryKeyCannotBeAdded
		}
		if !f.Type.Valid() {
			return rowdberr.New(rowdberr.KindInvalidTypeInSchema, "field %q has invalid type %v", f.Name, f.Type)
		}
		f.Ordinal = len(newSchema.Fields)
		if f.Autoinc() {
			f.CurAutoInc = *f.AutoIncStart
		}
		newSchema.Fields = append(newSchema.Fields, f)
	}

	defaultsByName := make(map[string]interface{}, len(fields))
	for i, f := range fields {
		defaultsByName[strings.ToLower(f.Name)] = defaults[i]
	}

	return db.compactTo(newSchema, defaultsByName, db.header.Major, db.header.Minor)
}

// DeleteFields removes one or more fields from the schema and from every
// live record. The primary key may never be dropped, and the schema can
// never be left with zero fields, per spec.md §4.7.
func (db *DB) DeleteFields(names []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	if db.header.NumDeleted > 0 {
		return rowdberr.ErrCantAlterWithDeleted
	}
	if len(names) == 0 {
		return rowdberr.New(rowdberr.KindInvalidOperation, "DeleteFields: no field names given")
	}

	drop := make(map[string]bool, len(names))
	for _, name := range names {
		f, _, ok := db.schema.FieldByName(name)
		if !ok {
			return rowdberr.New(rowdberr.KindInvalidFieldName, "unknown field %q", name)
		}
		if f.IsPrimaryKey {
			return rowdberr.ErrCannotDeletePKField
		}
		key := strings.ToLower(f.Name)
		if drop[key] {
			return rowdberr.New(rowdberr.KindFieldSpecifiedTwice, "field %q specified twice", name)
		}
		drop[key] = true
	}

	kept := make([]schema.Field, 0, len(db.schema.Fields))
	for _, f := range db.schema.Fields {
		if drop[strings.ToLower(f.Name)] {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return rowdberr.ErrFieldListIsEmpty
	}
	for i := range kept {
		kept[i].Ordinal = i
	}

	newSchema := &schema.Schema{PrimaryKeyName: db.schema.PrimaryKeyName, Fields: kept}
	return db.compactTo(newSchema, nil, db.header.Major, db.header.Minor)
}

// RenameField changes a field's name and rewrites the table through
// compactTo, since the length-prefixed name in the schema descriptor can
// change the descriptor's size and with it where the data region starts.
// Records are decoded by ordinal, so every value carries over under the new
// name.
func (db *DB) RenameField(oldName, newName string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkWritable(); err != nil {
		return err
	}
	if newName == "" {
		return rowdberr.ErrFieldNameIsEmpty
	}
	f, _, ok := db.schema.FieldByName(oldName)
	if !ok {
		return rowdberr.New(rowdberr.KindInvalidFieldName, "unknown field %q", oldName)
	}
	if _, _, exists := db.schema.FieldByName(newName); exists && !strings.EqualFold(oldName, newName) {
		return rowdberr.New(rowdberr.KindFieldNameAlreadyExists, "field %q already exists", newName)
	}
	oldFieldName, oldPKName := f.Name, db.schema.PrimaryKeyName
	if f.IsPrimaryKey {
		db.schema.PrimaryKeyName = newName
	}
	f.Name = newName

	if err := db.compactTo(db.schema.Clone(), nil, db.header.Major, db.header.Minor); err != nil {
		f.Name = oldFieldName
		db.schema.PrimaryKeyName = oldPKName
		return err
	}
	return nil
}
