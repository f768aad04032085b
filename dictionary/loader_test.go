package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemDir = "testdata/system"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadSystemDictionary(t *testing.T) {
	b, err := ReadSystemDictionary(systemDir)
	require.NoError(t, err)

	l, r := b.Grammar.MatrixSize()
	assert.Equal(t, 4, l)
	assert.Equal(t, 4, r)
	assert.Equal(t, int16(-200), b.Grammar.ConnectCost(1, 2))

	assert.Equal(t, 10, b.Lexicon.Size())
	assert.Equal(t, 4, b.Grammar.POSSize())
	assert.Equal(t, b.Grammar.POSSize(), b.Grammar.SystemPOSSize())
	assert.Equal(t, POS{"名詞", "固有名詞", "地名", "一般", "*", "*"}, b.Grammar.POSString(0))

	tokyoto := b.Lexicon.WordInfo(4)
	assert.Equal(t, "東京都", tokyoto.Surface)
	assert.Equal(t, "トウキョウト", tokyoto.ReadingForm)
	assert.Equal(t, "東京都", tokyoto.NormalizedForm)
	assert.Equal(t, []WordID{NewWordID(0, 0), NewWordID(0, 3)}, tokyoto.AUnitSplit)
	assert.Equal(t, int16(4500), tokyoto.Cost)

	sushi := b.Lexicon.WordInfo(9)
	assert.Equal(t, "寿司", sushi.NormalizedForm)
	assert.Equal(t, "すし", sushi.DictionaryForm)
}

func TestReadUserDictionary(t *testing.T) {
	system, err := ReadSystemDictionary(systemDir)
	require.NoError(t, err)

	user, err := ReadUserDictionary("testdata/user.csv", system.Grammar)
	require.NoError(t, err)

	require.Equal(t, 3, user.Lexicon.Size())
	assert.Equal(t, CostUnset, user.Lexicon.Cost(0))
	assert.Equal(t, CostUnset, user.Lexicon.Cost(1))
	assert.Equal(t, int16(2000), user.Lexicon.Cost(2))

	// 名詞,固有名詞,一般 is new: first user-local id.
	assert.Equal(t, int16(system.Grammar.SystemPOSSize()), user.Lexicon.WordInfo(0).POSID)
	assert.Equal(t, POS{"名詞", "固有名詞", "一般", "*", "*", "*"}, user.Grammar.POSString(0))
	assert.Equal(t, 1, user.Grammar.POSSize())

	// 名詞,固有名詞,地名,一般 is a system tuple.
	assert.Equal(t, int16(0), user.Lexicon.WordInfo(1).POSID)
}

func TestReadCharacterDefinitionFile(t *testing.T) {
	c, err := ReadCharacterDefinitionFile("testdata/char.def")
	require.NoError(t, err)
	assert.Equal(t, Katakana, c.CategoriesOf('ー'))
	assert.Equal(t, Numeric, c.CategoriesOf('７'))

	_, err = ReadCharacterDefinitionFile("testdata/missing.def")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSystemDictionary_Malformed(t *testing.T) {
	validMatrix := "2 2\n0 0 0\n1 1 5\n"
	validEntry := "a,1,1,10,名詞,*,*,*,*,*,ア,*,*,*,*\n"

	tests := []struct {
		name   string
		matrix string
		lex    string
		file   string
		line   int
		target error
	}{
		{name: "bad header", matrix: "2\n", lex: validEntry, file: MatrixFile, line: 1, target: ErrInvalidFormat},
		{name: "cell outside matrix", matrix: "2 2\n3 0 1\n", lex: validEntry, file: MatrixFile, line: 2, target: ErrInvalidFormat},
		{name: "empty matrix", matrix: "", lex: validEntry, file: MatrixFile, target: ErrInvalidFormat},
		{name: "short row", matrix: validMatrix, lex: validEntry + "b,1,1\n", file: LexiconFile, line: 2, target: ErrInvalidFormat},
		{name: "undefined connection", matrix: validMatrix, lex: "a,5,1,10,名詞,*,*,*,*,*,ア,*,*,*,*\n", file: LexiconFile, line: 1, target: ErrUndefinedConnection},
		{name: "unset system cost", matrix: validMatrix, lex: "a,1,1,*,名詞,*,*,*,*,*,ア,*,*,*,*\n", file: LexiconFile, line: 1, target: ErrInvalidFormat},
		{name: "dangling split", matrix: validMatrix, lex: "a,1,1,10,名詞,*,*,*,*,*,ア,*,*,0/4,*\n", file: LexiconFile, target: ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, MatrixFile, tt.matrix)
			writeFile(t, dir, LexiconFile, tt.lex)

			_, err := ReadSystemDictionary(dir)
			require.ErrorIs(t, err, tt.target)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, filepath.Join(dir, tt.file), pe.Path)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestReadSystemDictionary_MissingFile(t *testing.T) {
	_, err := ReadSystemDictionary(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
