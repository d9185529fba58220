package engine

import (
	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/valuecodec"
)

// Fields is the caller-facing record shape: a field name maps to a Go value
// in that field's natural representation (string, int32, float64,
// decimal.Decimal, uuid.UUID, valuecodec.DateTime, or []interface{} for an
// array field). A missing key means "null" on Add and "leave unchanged" on
// a partial Update.
type Fields map[string]interface{}

func lookupFold(raw Fields, name string) (interface{}, bool) {
	if v, ok := raw[name]; ok {
		return v, true
	}
	for k, v := range raw {
		if valuecodec.StringEqualFold(k, name, true) {
			return v, true
		}
	}
	return nil, false
}

// coerceFields converts a caller-supplied Fields map into record.Values. In
// full mode (partial=false, used by Add) every schema field gets an entry,
// defaulting to null when absent. In partial mode (used by the Update
// family) only fields present in raw are coerced; the rest are left out of
// the returned map entirely so callers can tell "untouched" from "set to
// null" by key presence.
func coerceFields(s *schema.Schema, raw Fields, partial bool) (record.Values, error) {
	out := make(record.Values, len(s.Fields))
	for _, f := range s.Fields {
		v, present := lookupFold(raw, f.Name)
		if !present {
			if partial {
				continue
			}
			out[f.Name] = valuecodec.NewNull(f.Type, f.IsArray)
			continue
		}
		if v == nil {
			out[f.Name] = valuecodec.NewNull(f.Type, f.IsArray)
			continue
		}
		if f.IsArray {
			arr, ok := v.([]interface{})
			if !ok {
				return nil, rowdberr.New(rowdberr.KindNonArrayValue, "field %q expects an array value", f.Name)
			}
			cv, err := valuecodec.CoerceArray(f.Type, arr)
			if err != nil {
				return nil, rowdberr.Wrap(rowdberr.KindErrorConvertingValue, err, "field %q", f.Name)
			}
			out[f.Name] = cv
			continue
		}
		cv, err := valuecodec.Coerce(f.Type, v)
		if err != nil {
			return nil, rowdberr.Wrap(rowdberr.KindErrorConvertingValue, err, "field %q", f.Name)
		}
		out[f.Name] = cv
	}
	return out, nil
}

// toFields renders a decoded record.Values back into the caller-facing
// shape for query results.
func toFields(rec record.Values) Fields {
	out := make(Fields, len(rec))
	for name, v := range rec {
		if v.Null {
			out[name] = nil
			continue
		}
		if v.IsArray {
			out[name] = v.Elements()
			continue
		}
		out[name] = v.Scalar()
	}
	return out
}
