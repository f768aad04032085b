package dictionary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCharacterDefinition(t *testing.T) {
	src := `
# comment
DEFAULT 0 1 0
KATAKANA 1 1 2
0x30A1..0x30FA KATAKANA
0x30FC KATAKANA HIRAGANA  # both
0x4E00..0x9FFF KANJI
`
	c := NewCharacterCategory()
	require.NoError(t, c.ReadCharacterDefinition(strings.NewReader(src), "char.def"))

	assert.Equal(t, Katakana, c.CategoriesOf('ア'))
	assert.Equal(t, Kanji, c.CategoriesOf('東'))
	assert.Equal(t, Default, c.CategoriesOf('a'))

	both := c.CategoriesOf('ー')
	assert.True(t, both.Has(Katakana))
	assert.True(t, both.Has(Hiragana))
	assert.Equal(t, []CategoryType{Hiragana, Katakana}, both.Each())
	assert.Equal(t, "HIRAGANA|KATAKANA", both.String())

	def, ok := c.Definition(Katakana)
	require.True(t, ok)
	assert.Equal(t, CategoryDefinition{Invoke: true, Group: true, Length: 2}, def)

	_, ok = c.Definition(Kanji)
	assert.False(t, ok)
}

func TestReadCharacterDefinition_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{name: "unknown category in range", src: "0x0041 LATIN\n", line: 1},
		{name: "unknown definition", src: "\nFOO 0 1 0\n", line: 2},
		{name: "short definition", src: "KANJI 0 1\n", line: 1},
		{name: "bad code point", src: "0xZZ KANJI\n", line: 1},
		{name: "inverted range", src: "0x0042..0x0041 ALPHA\n", line: 1},
		{name: "range without category", src: "0x0041\n", line: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCharacterCategory().ReadCharacterDefinition(strings.NewReader(tt.src), "char.def")
			require.ErrorIs(t, err, ErrInvalidFormat)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "char.def", pe.Path)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParseCategoryType(t *testing.T) {
	typ, ok := ParseCategoryType("NOOOVBOW")
	assert.True(t, ok)
	assert.Equal(t, NoOOVBOW, typ)

	_, ok = ParseCategoryType("katakana")
	assert.False(t, ok)
}
