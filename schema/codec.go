package schema

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/valuecodec"
)

const (
	fieldFlagAutoinc uint32 = 0x1
	fieldFlagArray   uint32 = 0x2
)

// WriteSchema writes the schema descriptor exactly as spec.md §4.1
// describes it: primary key name, field count, then each field in write
// order (primary key first).
func WriteSchema(w io.Writer, s *Schema, major byte) error {
	pkName := s.PrimaryKeyName
	if err := valuecodec.WriteString(w, pkName); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(s.Fields))); err != nil {
		return err
	}

	for _, f := range s.Fields {
		if err := valuecodec.WriteString(w, f.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int16(f.Type)); err != nil {
			return err
		}

		var flags uint32
		if f.Autoinc() {
			flags |= fieldFlagAutoinc
		}
		if f.IsArray {
			flags |= fieldFlagArray
		}
		if err := binary.Write(w, binary.LittleEndian, flags); err != nil {
			return err
		}

		if f.Autoinc() {
			if err := binary.Write(w, binary.LittleEndian, *f.AutoIncStart); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, f.CurAutoInc); err != nil {
				return err
			}
		}

		if major >= 2 {
			if err := valuecodec.WriteString(w, f.Comment); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadSchema is the inverse of WriteSchema. The primary key, identified by
// name, is assumed (per spec.md's invariant) to have been written first and
// is re-marked as such rather than re-derived from flags, since the wire
// format carries no explicit per-field "is primary key" bit.
func ReadSchema(r io.Reader, major byte) (*Schema, error) {
	pkName, err := valuecodec.ReadString(r)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to read primary key name: %w", err)
	}

	var fieldCount int32
	if err := binary.Read(r, binary.LittleEndian, &fieldCount); err != nil {
		return nil, fmt.Errorf("schema: failed to read field count: %w", err)
	}
	if fieldCount < 0 {
		return nil, fmt.Errorf("schema: negative field count %d", fieldCount)
	}

	fields := make([]Field, fieldCount)
	for i := range fields {
		name, err := valuecodec.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("schema: failed to read field %d name: %w", i, err)
		}

		var typeCode int16
		if err := binary.Read(r, binary.LittleEndian, &typeCode); err != nil {
			return nil, fmt.Errorf("schema: failed to read field %q type: %w", name, err)
		}
		t := valuecodec.Type(typeCode)
		if !t.Valid() {
			return nil, rowdberr.New(rowdberr.KindInvalidTypeInSchema, "field %q has invalid on-disk type code %d", name, typeCode)
		}

		var flags uint32
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return nil, fmt.Errorf("schema: failed to read field %q flags: %w", name, err)
		}

		f := Field{
			Name:    name,
			Type:    t,
			IsArray: flags&fieldFlagArray != 0,
			Ordinal: i,
		}

		if flags&fieldFlagAutoinc != 0 {
			var start, cur int32
			if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
				return nil, err
			}
			if err := binary.Read(r, binary.LittleEndian, &cur); err != nil {
				return nil, err
			}
			f.AutoIncStart = &start
			f.CurAutoInc = cur
		}

		if major >= 2 {
			comment, err := valuecodec.ReadString(r)
			if err != nil {
				return nil, fmt.Errorf("schema: failed to read field %q comment: %w", name, err)
			}
			f.Comment = comment
		}

		fields[i] = f
	}

	if pkName != "" && len(fields) > 0 {
		fields[0].IsPrimaryKey = true
	}

	return &Schema{PrimaryKeyName: pkName, Fields: fields}, nil
}
