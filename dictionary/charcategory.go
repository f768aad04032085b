package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"
)

// CategoryType is a set of character categories.
type CategoryType uint32

const (
	Default CategoryType = 1 << iota
	Space
	Kanji
	Symbol
	Numeric
	Alpha
	Hiragana
	Katakana
	KanjiNumeric
	Greek
	Cyrillic
	User1
	User2
	User3
	User4
	// NoOOVBOW forbids OOV words from beginning at a character.
	NoOOVBOW
)

var categoryNames = []struct {
	name string
	typ  CategoryType
}{
	{"DEFAULT", Default},
	{"SPACE", Space},
	{"KANJI", Kanji},
	{"SYMBOL", Symbol},
	{"NUMERIC", Numeric},
	{"ALPHA", Alpha},
	{"HIRAGANA", Hiragana},
	{"KATAKANA", Katakana},
	{"KANJINUMERIC", KanjiNumeric},
	{"GREEK", Greek},
	{"CYRILLIC", Cyrillic},
	{"USER1", User1},
	{"USER2", User2},
	{"USER3", User3},
	{"USER4", User4},
	{"NOOOVBOW", NoOOVBOW},
}

// ParseCategoryType returns the category named name (e.g. "KATAKANA").
func ParseCategoryType(name string) (CategoryType, bool) {
	for _, c := range categoryNames {
		if c.name == name {
			return c.typ, true
		}
	}
	return 0, false
}

// Has reports whether every category in o is also in c.
func (c CategoryType) Has(o CategoryType) bool {
	return c&o == o
}

func (c CategoryType) String() string {
	if c == 0 {
		return "NONE"
	}
	var names []string
	for _, n := range categoryNames {
		if c&n.typ != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Each returns the single categories contained in c in ascending bit order.
func (c CategoryType) Each() []CategoryType {
	out := make([]CategoryType, 0, bits.OnesCount32(uint32(c)))
	for c != 0 {
		low := c & -c
		out = append(out, low)
		c &^= low
	}
	return out
}

// CategoryDefinition holds the unknown-word policy of a category,
// as declared in char.def.
type CategoryDefinition struct {
	// Invoke generates OOV candidates even where known words exist.
	Invoke bool
	// Group emits one candidate spanning the whole run of the category.
	Group bool
	// Length emits candidates of 1..Length characters.
	Length int
}

type categoryRange struct {
	low, high rune
	types     CategoryType
}

// CharacterCategory classifies code points into CategoryType sets.
// It is read-only once loaded.
type CharacterCategory struct {
	ranges      []categoryRange
	definitions map[CategoryType]CategoryDefinition
}

// NewCharacterCategory returns an empty CharacterCategory: every
// character falls in Default.
func NewCharacterCategory() *CharacterCategory {
	return &CharacterCategory{definitions: make(map[CategoryType]CategoryDefinition)}
}

// CategoriesOf returns the categories of r. Characters outside every
// declared range are Default.
func (c *CharacterCategory) CategoriesOf(r rune) CategoryType {
	var t CategoryType
	for _, rg := range c.ranges {
		if rg.low <= r && r <= rg.high {
			t |= rg.types
		}
	}
	if t == 0 {
		return Default
	}
	return t
}

// Definition returns the OOV policy declared for a single category.
func (c *CharacterCategory) Definition(t CategoryType) (CategoryDefinition, bool) {
	d, ok := c.definitions[t]
	return d, ok
}

// ReadCharacterDefinition parses a char.def stream. name is used in errors.
//
// Two kinds of lines are accepted, '#' starts a comment:
//
//	KATAKANA 1 1 2            category definition: NAME INVOKE GROUP LENGTH
//	0x30A1..0x30FF KATAKANA   code point range followed by category names
func (c *CharacterCategory) ReadCharacterDefinition(r io.Reader, name string) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "0x") {
			if err := c.parseRange(fields, name, lineNo); err != nil {
				return err
			}
			continue
		}
		if err := c.parseDefinition(fields, name, lineNo); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

func (c *CharacterCategory) parseRange(fields []string, name string, lineNo int) error {
	if len(fields) < 2 {
		return malformed(name, lineNo, "range without category")
	}
	lowStr, highStr, isRange := strings.Cut(fields[0], "..")
	low, err := parseCodePoint(lowStr)
	if err != nil {
		return malformed(name, lineNo, "bad code point %q", lowStr)
	}
	high := low
	if isRange {
		if high, err = parseCodePoint(highStr); err != nil {
			return malformed(name, lineNo, "bad code point %q", highStr)
		}
	}
	if high < low {
		return malformed(name, lineNo, "empty range %s", fields[0])
	}
	var types CategoryType
	for _, f := range fields[1:] {
		t, ok := ParseCategoryType(f)
		if !ok {
			return malformed(name, lineNo, "unknown category %q", f)
		}
		types |= t
	}
	c.ranges = append(c.ranges, categoryRange{low: low, high: high, types: types})
	return nil
}

func (c *CharacterCategory) parseDefinition(fields []string, name string, lineNo int) error {
	if len(fields) != 4 {
		return malformed(name, lineNo, "category definition needs NAME INVOKE GROUP LENGTH")
	}
	t, ok := ParseCategoryType(fields[0])
	if !ok {
		return malformed(name, lineNo, "unknown category %q", fields[0])
	}
	invoke, err1 := strconv.Atoi(fields[1])
	group, err2 := strconv.Atoi(fields[2])
	length, err3 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || err3 != nil || length < 0 {
		return malformed(name, lineNo, "bad category definition for %s", fields[0])
	}
	c.definitions[t] = CategoryDefinition{
		Invoke: invoke != 0,
		Group:  group != 0,
		Length: length,
	}
	return nil
}

func parseCodePoint(s string) (rune, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, err
	}
	return rune(v), nil
}
