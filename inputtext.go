package kaiseki

import (
	"fmt"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

// InputTextBuilder holds the text being normalized by the input text
// plugins. Every edit goes through Replace, which keeps the mapping from
// the modified text back to the original text up to date.
type InputTextBuilder struct {
	original []rune
	modified []rune
	// offsets[i] is the original offset of modified[i]; the extra last
	// element maps the end of the modified text.
	offsets  []int
	category *dictionary.CharacterCategory
}

// NewInputTextBuilder starts a builder over text. Characters are
// classified with the grammar's character category table. Invalid UTF-8
// bytes read as U+FFFD; Tokenizer rejects such text before building.
func NewInputTextBuilder(text string, grammar *dictionary.Grammar) *InputTextBuilder {
	original := []rune(text)
	offsets := make([]int, len(original)+1)
	for i := range offsets {
		offsets[i] = i
	}
	category := grammar.CharCategory
	if category == nil {
		category = dictionary.NewCharacterCategory()
	}
	return &InputTextBuilder{
		original: original,
		modified: append([]rune(nil), original...),
		offsets:  offsets,
		category: category,
	}
}

// OriginalText returns the text the builder was created with.
func (b *InputTextBuilder) OriginalText() string {
	return string(b.original)
}

// Text returns the current modified text.
func (b *InputTextBuilder) Text() string {
	return string(b.modified)
}

// Runes returns the current modified text. The slice must not be modified.
func (b *InputTextBuilder) Runes() []rune {
	return b.modified
}

// Len returns the length of the modified text in characters.
func (b *InputTextBuilder) Len() int {
	return len(b.modified)
}

// Replace substitutes str for the characters [begin, end) of the modified
// text. The first replacement character maps to the original offset of
// begin, the others to the original offset of end.
func (b *InputTextBuilder) Replace(begin, end int, str string) error {
	if begin < 0 || end > len(b.modified) || begin > end {
		return fmt.Errorf("replace [%d, %d) outside text of length %d", begin, end, len(b.modified))
	}
	repl := []rune(str)

	modified := make([]rune, 0, len(b.modified)-(end-begin)+len(repl))
	modified = append(modified, b.modified[:begin]...)
	modified = append(modified, repl...)
	modified = append(modified, b.modified[end:]...)

	offsets := make([]int, 0, len(modified)+1)
	offsets = append(offsets, b.offsets[:begin]...)
	for i := range repl {
		if i == 0 {
			offsets = append(offsets, b.offsets[begin])
		} else {
			offsets = append(offsets, b.offsets[end])
		}
	}
	offsets = append(offsets, b.offsets[end:]...)

	b.modified = modified
	b.offsets = offsets
	return nil
}

// Build freezes the builder into an InputText.
func (b *InputTextBuilder) Build() *InputText {
	categories := make([]dictionary.CategoryType, len(b.modified))
	for i, r := range b.modified {
		categories[i] = b.category.CategoriesOf(r)
	}
	return &InputText{
		original:   b.original,
		text:       append([]rune(nil), b.modified...),
		offsets:    append([]int(nil), b.offsets...),
		categories: categories,
	}
}

// InputText is the normalized text of one tokenization together with
// the original text it came from. It is read-only.
//
// All offsets are character offsets into the normalized text unless a
// method says otherwise.
type InputText struct {
	original   []rune
	text       []rune
	offsets    []int
	categories []dictionary.CategoryType
}

// OriginalText returns the text as passed to the tokenizer.
func (t *InputText) OriginalText() string {
	return string(t.original)
}

// Text returns the normalized text.
func (t *InputText) Text() string {
	return string(t.text)
}

// Runes returns the normalized text. The slice must not be modified.
func (t *InputText) Runes() []rune {
	return t.text
}

// Len returns the normalized text length in characters.
func (t *InputText) Len() int {
	return len(t.text)
}

// Slice returns the normalized text in [begin, end).
func (t *InputText) Slice(begin, end int) string {
	return string(t.text[begin:end])
}

// OriginalOffset maps a normalized offset to the original text.
func (t *InputText) OriginalOffset(offset int) int {
	return t.offsets[offset]
}

// OriginalSlice returns the original text covering the normalized span
// [begin, end). It may be empty when the span lies inside the expansion
// of a single original character.
func (t *InputText) OriginalSlice(begin, end int) string {
	return string(t.original[t.offsets[begin]:t.offsets[end]])
}

// Categories returns the character categories at offset.
func (t *InputText) Categories(offset int) dictionary.CategoryType {
	return t.categories[offset]
}

// CategoriesBetween returns the categories shared by every character in
// [begin, end).
func (t *InputText) CategoriesBetween(begin, end int) dictionary.CategoryType {
	if begin >= end {
		return 0
	}
	types := t.categories[begin]
	for _, c := range t.categories[begin+1 : end] {
		types &= c
	}
	return types
}

// CategoryRunLength returns how many characters from offset on share at
// least one category with all the others.
func (t *InputText) CategoryRunLength(offset int) int {
	if offset >= len(t.text) {
		return 0
	}
	types := t.categories[offset]
	n := 1
	for _, c := range t.categories[offset+1:] {
		types &= c
		if types == 0 {
			break
		}
		n++
	}
	return n
}
