package filter

import (
	"testing"

	"github.com/flashgrid/rowdb/record"
	"github.com/flashgrid/rowdb/schema"
	"github.com/flashgrid/rowdb/valuecodec"
	"github.com/stretchr/testify/require"
)

func peopleSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewSchema([]schema.Field{
		{Name: "first", Type: valuecodec.TypeString},
		{Name: "last", Type: valuecodec.TypeString},
		{Name: "age", Type: valuecodec.TypeInt32},
	})
	require.NoError(t, err)
	return s
}

func person(first, last string, age int32) record.Values {
	return record.Values{
		"first": valuecodec.NewString(first),
		"last":  valuecodec.NewString(last),
		"age":   valuecodec.NewInt32(age),
	}
}

func TestParseAndEvalCaseInsensitiveOrAgeGroup(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("(~first = 'ann' AND last ~= 'lee') OR age > 35")
	require.NoError(t, err)

	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	people := []record.Values{
		person("Ann", "Lee", 30),
		person("ann", "LEE", 25),
		person("Bob", "Smith", 40),
	}

	var matched int
	for _, p := range people {
		ok, err := ev.Match(p)
		require.NoError(t, err)
		if ok {
			matched++
		}
	}
	require.Equal(t, 3, matched)
}

func TestParseAndEvalExactCaseSensitiveMatch(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("first = 'ann'")
	require.NoError(t, err)

	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	people := []record.Values{
		person("Ann", "Lee", 30),
		person("ann", "LEE", 25),
		person("Bob", "Smith", 40),
	}

	var matches []string
	for _, p := range people {
		ok, err := ev.Match(p)
		require.NoError(t, err)
		if ok {
			last, _ := p["last"].String()
			matches = append(matches, last)
		}
	}
	require.Equal(t, []string{"LEE"}, matches)
}

func TestBangEqIsSugarForNegatedEq(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("age != 30")
	require.NoError(t, err)
	atom := node.(*Atom)
	require.Equal(t, Eq, atom.Op)
	require.True(t, atom.Negated)

	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	ok, err := ev.Match(person("Ann", "Lee", 30))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = ev.Match(person("Bob", "Smith", 40))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInOperatorCoercesOnce(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("age IN (25, 30, 40)")
	require.NoError(t, err)

	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	for _, age := range []int32{25, 30, 40} {
		ok, err := ev.Match(person("x", "y", age))
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := ev.Match(person("x", "y", 99))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNullEqualityRules(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("last = NULL")
	require.NoError(t, err)

	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	ok, err := ev.Match(record.Values{"first": valuecodec.NewString("a"), "last": valuecodec.NewNull(valuecodec.TypeString, false), "age": valuecodec.NewInt32(1)})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ev.Match(person("a", "b", 1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContainsSubstring(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("~last CONTAINS 'ee'")
	require.NoError(t, err)
	ev, err := NewEvaluator(node, s)
	require.NoError(t, err)

	ok, err := ev.Match(person("a", "Lee", 1))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnknownFieldRejected(t *testing.T) {
	s := peopleSchema(t)
	node, err := Parse("nickname = 'x'")
	require.NoError(t, err)

	_, err = NewEvaluator(node, s)
	require.Error(t, err)
}

func TestMalformedExpressionRaisesInvalidFilterConstruct(t *testing.T) {
	_, err := Parse("first = ")
	require.Error(t, err)
}
