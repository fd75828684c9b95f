package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/paveg/colstat/internal/errors"
)

func TestLexer(t *testing.T) {
	l := NewLexer(`x**2 >= 1.5e-3 and name != 'a\'b' | ~flag`)

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{IDENT, "x"}, {POW, "**"}, {NUMBER, "2"}, {GE, ">="}, {NUMBER, "1.5e-3"},
		{AND, "and"}, {IDENT, "name"}, {NE, "!="}, {STRING, "a'b"}, {BITOR, "|"},
		{INVERT, "~"}, {IDENT, "flag"}, {EOF, ""},
	}
	for _, want := range expected {
		tok := l.NextToken()
		assert.Equal(t, want.typ, tok.Type, "literal %q", tok.Literal)
		assert.Equal(t, want.literal, tok.Literal)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"x+t*y", "(x + (t * y))"},
		{"-x**2", "(-(x ** 2))"},
		{"2**3**2", "(2 ** (3 ** 2))"},
		{"2**-1", "(2 ** (-1))"},
		{"(x > 5) & (y < 3)", "((x > 5) & (y < 3))"},
		{"x > 1 and y < 2 or flag", "(((x > 1) and (y < 2)) or flag)"},
		{"not x > 5", "(not (x > 5))"},
		{"arctan2(y, x) % 3", "(arctan2(y, x) % 3)"},
		{"f()", "f()"},
		{"True | False", "(True | False)"},
		{"a | b ^ c & d", "(a | (b ^ (c & d)))"},
		{"a & b | c", "((a & b) | c)"},
		{"x > 1 | 2", "(x > (1 | 2))"},
		{"a & b + 1", "(a & (b + 1))"},
		{".5 + 1.", "(0.5 + 1)"},
		{"x - -1", "(x - (-1))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, node.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"x/", "", "x +* y", "(x", "x = 1", "f(x,", "'open", "x y"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrSyntax)
		})
	}
}

func TestIdentifiersAndFunctions(t *testing.T) {
	node, err := Parse("sqrt(x**2 + y) + where(x > t, x, z)")
	require.NoError(t, err)

	assert.Equal(t, []string{"t", "x", "y", "z"}, Identifiers(node))
	assert.Equal(t, []string{"sqrt", "where"}, Functions(node))
}

func TestCache(t *testing.T) {
	c := NewCache(2)

	a, err := c.Parse("x + 1")
	require.NoError(t, err)
	b, err := c.Parse("x + 1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = c.Parse("x +")
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())

	_, _ = c.Parse("y")
	_, _ = c.Parse("z")
	assert.LessOrEqual(t, c.Len(), 2)
}
