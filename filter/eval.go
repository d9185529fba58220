package filter

import (
	"regexp"
	"strconv"

	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/rowdberr"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/valuecodec"
)

// compiled caches per-evaluation-pass state that must not be recomputed per
// record: compiled regexes and coerced IN-sets. A fresh compiled is created
// by NewEvaluator and reused by every Match call on it (spec.md: "compiles the pattern
// once per evaluation pass"; "coerced lazily, once").
type compiled struct {
	regexes map[*Atom]*regexp.Regexp
	sets    map[*Atom][]valuecodec.Value
}

func newCompiled() *compiled {
	return &compiled{regexes: make(map[*Atom]*regexp.Regexp), sets: make(map[*Atom][]valuecodec.Value)}
}

// Evaluator binds an AST to a schema, ready to test records.
type Evaluator struct {
	root   Node
	schema *schema.Schema
	state  *compiled
}

// NewEvaluator validates that every field the AST references by name
// exists in s, rejecting the whole filter otherwise, and readies a fresh
// per-pass compilation cache.
func NewEvaluator(root Node, s *schema.Schema) (*Evaluator, error) {
	if err := validateFields(root, s); err != nil {
		return nil, err
	}
	return &Evaluator{root: root, schema: s, state: newCompiled()}, nil
}

func validateFields(n Node, s *schema.Schema) error {
	switch t := n.(type) {
	case *Atom:
		if _, _, ok := s.FieldByName(t.Field); !ok {
			return rowdberr.New(rowdberr.KindInvalidFilterConstruct, "filter: unknown field %q", t.Field)
		}
		return nil
	case *Group:
		for _, c := range t.Children {
			if err := validateFields(c, s); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// Match evaluates the bound AST against rec.
func (e *Evaluator) Match(rec record.Values) (bool, error) {
	return evalNode(e.root, rec, e.schema, e.state)
}

func evalNode(n Node, rec record.Values, s *schema.Schema, st *compiled) (bool, error) {
	switch t := n.(type) {
	case *Atom:
		return evalAtom(t, rec, s, st)
	case *Group:
		return evalGroup(t, rec, s, st)
	default:
		return false, rowdberr.New(rowdberr.KindInvalidFilterConstruct, "filter: unknown node type")
	}
}

func evalGroup(g *Group, rec record.Values, s *schema.Schema, st *compiled) (bool, error) {
	if len(g.Children) == 0 {
		return true, nil
	}
	acc, err := evalNode(g.Children[0], rec, s, st)
	if err != nil {
		return false, err
	}
	for _, c := range g.Children[1:] {
		if g.Op == And && !acc {
			return false, nil
		}
		if g.Op == Or && acc {
			return true, nil
		}
		v, err := evalNode(c, rec, s, st)
		if err != nil {
			return false, err
		}
		if g.Op == And {
			acc = acc && v
		} else {
			acc = acc || v
		}
	}
	return acc, nil
}

func evalAtom(a *Atom, rec record.Values, s *schema.Schema, st *compiled) (bool, error) {
	f, _, _ := s.FieldByName(a.Field)
	fv, ok := rec[f.Name]
	if !ok {
		fv = valuecodec.NewNull(f.Type, f.IsArray)
	}

	result, err := matchAtom(a, fv, f, st)
	if err != nil {
		return false, err
	}
	if a.Negated {
		result = !result
	}
	return result, nil
}

func matchAtom(a *Atom, fv valuecodec.Value, f *schema.Field, st *compiled) (bool, error) {
	if f.IsArray {
		return false, nil // array-typed fields never match, per spec.md §4.6.
	}

	switch a.Op {
	case Eq, Ne:
		return matchEquality(a, fv)
	case Lt, Le, Gt, Ge:
		return matchOrdering(a, fv)
	case In:
		return matchIn(a, fv, f, st)
	case Regex:
		return matchRegex(a, fv, st)
	case Contains:
		return matchContains(a, fv)
	default:
		return false, rowdberr.New(rowdberr.KindInvalidFilterConstruct, "filter: unsupported operator %v", a.Op)
	}
}

// matchEquality implements spec.md's null rule: null==null is true,
// null==x is false, for both Eq and (pre-negation) Ne — Ne is produced
// only by direct AST construction since the parser desugars `!=`/`<>`
// into Eq with Negated=true.
func matchEquality(a *Atom, fv valuecodec.Value) (bool, error) {
	rhsNull := a.Rhs.IsNull
	var eq bool
	switch {
	case fv.Null && rhsNull:
		eq = true
	case fv.Null != rhsNull:
		eq = false
	default:
		rv, err := coerceLiteral(a.Rhs.Scalar, fv.Type)
		if err != nil {
			return false, err
		}
		if fv.Type == valuecodec.TypeString && a.Match == CaseInsensitive {
			av, _ := fv.String()
			bv, _ := rv.String()
			eq = valuecodec.StringEqualFold(av, bv, true)
		} else {
			eq = fv.Equal(rv)
		}
	}
	if a.Op == Ne {
		return !eq, nil
	}
	return eq, nil
}

func matchOrdering(a *Atom, fv valuecodec.Value) (bool, error) {
	if fv.Null || a.Rhs.IsNull {
		return false, nil
	}
	rv, err := coerceLiteral(a.Rhs.Scalar, fv.Type)
	if err != nil {
		return false, err
	}
	var cmp int
	var ok bool
	if fv.Type == valuecodec.TypeString {
		av, _ := fv.String()
		bv, _ := rv.String()
		cmp, ok = valuecodec.StringCompare(av, bv, a.Match == CaseInsensitive), true
	} else {
		cmp, ok = fv.Compare(rv)
	}
	if !ok {
		return false, nil
	}
	switch a.Op {
	case Lt:
		return cmp < 0, nil
	case Le:
		return cmp <= 0, nil
	case Gt:
		return cmp > 0, nil
	case Ge:
		return cmp >= 0, nil
	}
	return false, nil
}

func matchIn(a *Atom, fv valuecodec.Value, f *schema.Field, st *compiled) (bool, error) {
	if fv.Null {
		return false, nil
	}
	set, ok := st.sets[a]
	if !ok {
		set = make([]valuecodec.Value, 0, len(a.Rhs.Set))
		for _, lit := range a.Rhs.Set {
			v, err := coerceLiteral(lit, f.Type)
			if err != nil {
				return false, err
			}
			set = append(set, v)
		}
		st.sets[a] = set
	}
	for _, v := range set {
		if fv.Equal(v) {
			return true, nil
		}
	}
	return false, nil
}

func matchRegex(a *Atom, fv valuecodec.Value, st *compiled) (bool, error) {
	if fv.Null {
		return false, nil
	}
	re, ok := st.regexes[a]
	if !ok {
		pattern := a.Rhs.Pattern
		if a.Match == CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return false, rowdberr.Wrap(rowdberr.KindInvalidFilterConstruct, err, "filter: invalid regex %q", a.Rhs.Pattern)
		}
		re = compiled
		st.regexes[a] = re
	}
	return re.MatchString(fv.AsText()), nil
}

func matchContains(a *Atom, fv valuecodec.Value) (bool, error) {
	if fv.Null {
		return false, nil
	}
	needle := a.Rhs.Scalar.Str
	if !a.Rhs.Scalar.IsString {
		needle = strconv.FormatFloat(a.Rhs.Scalar.Num, 'g', -1, 64)
	}
	haystack := fv.AsText()
	return valuecodec.StringContains(haystack, needle, a.Match == CaseInsensitive), nil
}

// coerceLiteral converts a parsed Literal (string or number, as spelled in
// the filter text) into the field's native Value type, per spec.md's
// "values are coerced to the field type" rule. Numeric literals always
// arrive as float64 from the parser, so they are converted explicitly to the
// numeric target type before handing off to valuecodec.Coerce.
func coerceLiteral(lit Literal, t valuecodec.Type) (valuecodec.Value, error) {
	if lit.IsString {
		return valuecodec.Coerce(t, lit.Str)
	}
	switch t {
	case valuecodec.TypeByte:
		return valuecodec.Coerce(t, int(lit.Num))
	case valuecodec.TypeInt32:
		return valuecodec.Coerce(t, int32(lit.Num))
	case valuecodec.TypeUInt32:
		return valuecodec.Coerce(t, uint32(lit.Num))
	case valuecodec.TypeInt64:
		return valuecodec.Coerce(t, int64(lit.Num))
	case valuecodec.TypeFloat32:
		return valuecodec.Coerce(t, float32(lit.Num))
	case valuecodec.TypeFloat64:
		return valuecodec.Coerce(t, lit.Num)
	case valuecodec.TypeDecimal128:
		return valuecodec.Coerce(t, lit.Num)
	default:
		return valuecodec.Value{}, rowdberr.New(rowdberr.KindInvalidFilterConstruct, "filter: numeric literal is not valid for type %s", t)
	}
}
