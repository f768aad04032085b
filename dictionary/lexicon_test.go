package dictionary

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(surface string, cost int16, pos int16) Entry {
	return Entry{LeftID: 1, RightID: 1, Cost: cost, Info: WordInfo{Surface: surface, POSID: pos}}
}

func newLexicon(t *testing.T, entries []Entry) *Lexicon {
	t.Helper()
	lex, err := NewLexicon(entries)
	require.NoError(t, err)
	return lex
}

func collect(s *LexiconSet, text string, offset int) []Match {
	return slices.Collect(s.Lookup([]rune(text), offset))
}

func TestLexicon_CommonPrefixLookup(t *testing.T) {
	lex := newLexicon(t, []Entry{
		entry("東京都", 4500, 0),
		entry("東", 4000, 0),
		entry("東京", 3000, 0),
		entry("京都", 2500, 0),
		entry("東京", 3100, 1),
	})
	set := NewLexiconSet(lex, 2)

	got := collect(set, "東京都に", 0)
	require.Len(t, got, 4)

	ends := make([]int, len(got))
	for i, m := range got {
		ends[i] = m.End
	}
	assert.Equal(t, []int{1, 2, 2, 3}, ends, "shorter prefixes first")
	assert.Equal(t, NewWordID(0, 2), got[1].WordID, "same surface keeps load order")
	assert.Equal(t, NewWordID(0, 4), got[2].WordID)
	assert.Equal(t, int16(3100), got[2].Cost)

	got = collect(set, "東京都に", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].End)

	assert.Empty(t, collect(set, "東京都に", 3))
	assert.Empty(t, collect(set, "東京都に", 4))
}

func TestLexicon_HeadwordLengthDefaultsToRuneCount(t *testing.T) {
	lex := newLexicon(t, []Entry{entry("アイス", 1, 0)})
	assert.Equal(t, int16(3), lex.WordInfo(0).HeadwordLength)
	assert.Equal(t, int16(1), lex.WordInfo(0).Cost)
}

func TestLexicon_CalculateCost(t *testing.T) {
	lex := newLexicon(t, []Entry{
		entry("すし", CostUnset, 0),
		entry("京都", 100, 0),
	})

	var seen []string
	err := lex.CalculateCost(func(surface string) (int16, error) {
		seen = append(seen, surface)
		return 777, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"すし"}, seen, "explicit costs are kept")
	assert.Equal(t, int16(777), lex.Cost(0))
	assert.Equal(t, int16(777), lex.WordInfo(0).Cost)
	assert.Equal(t, int16(100), lex.Cost(1))
}

func TestLexiconSet_AddUserLexicon(t *testing.T) {
	system := newLexicon(t, []Entry{entry("京都", 2500, 0)})
	set := NewLexiconSet(system, 3)

	user := newLexicon(t, []Entry{
		entry("京都", 2480, 1),
		{LeftID: 1, RightID: 1, Cost: 10, Info: WordInfo{
			Surface:    "京都府",
			POSID:      3,
			AUnitSplit: []WordID{NewWordID(0, 0)},
		}},
	})
	dictID, err := set.Add(user, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, dictID)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 3, set.Size())

	got := collect(set, "京都府", 0)
	require.Len(t, got, 3)
	assert.Equal(t, NewWordID(0, 0), got[0].WordID, "system dictionary first")
	assert.Equal(t, NewWordID(1, 0), got[1].WordID)
	assert.Equal(t, NewWordID(1, 1), got[2].WordID)

	info, err := set.WordInfo(NewWordID(1, 1))
	require.NoError(t, err)
	assert.Equal(t, int16(5), info.POSID, "user pos id shifted to the merged offset")
	assert.Equal(t, []WordID{NewWordID(1, 0)}, info.AUnitSplit, "splits refer to the owning dictionary")

	info, err = set.WordInfo(NewWordID(1, 0))
	require.NoError(t, err)
	assert.Equal(t, int16(1), info.POSID, "system pos ids are untouched")

	cost, err := set.Cost(NewWordID(1, 0))
	require.NoError(t, err)
	assert.Equal(t, int16(2480), cost)

	_, err = set.WordInfo(NewWordID(2, 0))
	assert.Error(t, err)
	_, err = set.WordInfo(OOVWordID)
	assert.Error(t, err)
}

func TestLexiconSet_Capacity(t *testing.T) {
	set := NewLexiconSet(newLexicon(t, nil), 0)
	for i := 1; i < MaxDictionaries; i++ {
		require.False(t, set.IsFull())
		id, err := set.Add(newLexicon(t, nil), 0)
		require.NoError(t, err)
		require.Equal(t, i, id)
	}
	assert.True(t, set.IsFull())

	_, err := set.Add(newLexicon(t, nil), 0)
	assert.ErrorIs(t, err, ErrTooManyDictionaries)
	assert.Equal(t, MaxDictionaries, set.Len())
}

func TestLexiconSet_LookupStopsEarly(t *testing.T) {
	set := NewLexiconSet(newLexicon(t, []Entry{entry("a", 1, 0), entry("ab", 1, 0)}), 1)
	_, err := set.Add(newLexicon(t, []Entry{entry("a", 1, 0)}), 1)
	require.NoError(t, err)

	n := 0
	for range set.Lookup([]rune("ab"), 0) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestLexicon_TrieKeysInAnyLoadOrder(t *testing.T) {
	lex := newLexicon(t, []Entry{
		entry("東京都庁", 1, 0),
		entry("すし", 2, 0),
		entry("ab", 3, 0),
		entry("東京", 4, 0),
		entry("a", 5, 0),
		entry("", 6, 0),
		entry("東京都", 7, 0),
	})
	set := NewLexiconSet(lex, 1)

	ends := func(text string) []int {
		var out []int
		for _, m := range collect(set, text, 0) {
			out = append(out, m.End)
		}
		return out
	}
	assert.Equal(t, []int{2, 3, 4}, ends("東京都庁舎"))
	assert.Equal(t, []int{1, 2}, ends("abc"))
	assert.Equal(t, []int{2}, ends("すしや"))
	assert.Empty(t, ends("京都"))
	assert.Equal(t, 7, lex.Size(), "entries without a surface are kept but not indexed")
}

func TestLexicon_NoSurfaces(t *testing.T) {
	set := NewLexiconSet(newLexicon(t, []Entry{entry("", 1, 0)}), 1)
	assert.Empty(t, collect(set, "東京", 0))
}
