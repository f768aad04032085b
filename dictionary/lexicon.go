package dictionary

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	darts "github.com/awsong/go-darts"
	"github.com/emirpasic/gods/trees/redblacktree"
)

// CostUnset marks an entry whose occurrence cost must be calibrated
// before the lexicon is merged (see Lexicon.CalculateCost).
const CostUnset int16 = math.MinInt16

// Entry is a word entry as read from a dictionary source.
type Entry struct {
	LeftID  int16
	RightID int16
	Cost    int16
	Info    WordInfo
}

type wordParam struct {
	leftID  int16
	rightID int16
	cost    int16
}

// Lexicon maps surfaces to word entries through a double-array trie.
// Local word ids are entry indexes in load order.
type Lexicon struct {
	// trie is nil when no entry has a surface.
	trie     *darts.Darts
	postings [][]int32
	params   []wordParam
	infos    []WordInfo
}

// NewLexicon indexes entries. The trie values index postings, which
// hold the local ids of every entry sharing a surface.
func NewLexicon(entries []Entry) (*Lexicon, error) {
	l := &Lexicon{
		params: make([]wordParam, 0, len(entries)),
		infos:  make([]WordInfo, 0, len(entries)),
	}
	index := redblacktree.NewWithStringComparator()
	for i, e := range entries {
		info := e.Info
		if info.HeadwordLength == 0 {
			info.HeadwordLength = int16(utf8.RuneCountInString(info.Surface))
		}
		info.Cost = e.Cost
		l.params = append(l.params, wordParam{leftID: e.LeftID, rightID: e.RightID, cost: e.Cost})
		l.infos = append(l.infos, info)
		if info.Surface == "" {
			continue
		}
		var ids []int32
		if v, found := index.Get(info.Surface); found {
			ids = v.([]int32)
		}
		index.Put(info.Surface, append(ids, int32(i)))
	}
	if index.Empty() {
		return l, nil
	}

	// The builder needs keys in ascending code point order, which is the
	// byte order of their UTF-8 form.
	keys := make([][]rune, 0, index.Size())
	values := make([]int, 0, index.Size())
	it := index.Iterator()
	for it.Next() {
		keys = append(keys, []rune(it.Key().(string)))
		values = append(values, len(l.postings))
		l.postings = append(l.postings, it.Value().([]int32))
	}
	trie, err := darts.Build(keys, values)
	if err != nil {
		return nil, fmt.Errorf("build lexicon trie: %w", err)
	}
	l.trie = &trie
	return l, nil
}

// Size returns the number of entries.
func (l *Lexicon) Size() int {
	return len(l.infos)
}

// lookup calls fn for every entry whose surface is a prefix of
// text[offset:], shortest match first, with the end offset of the match.
func (l *Lexicon) lookup(text []rune, offset int, fn func(end, localID int) bool) {
	if l.trie == nil || offset >= len(text) {
		return
	}
	matches := l.trie.CommonPrefixSearch(text[offset:], 0)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].PrefixLen < matches[j].PrefixLen
	})
	for _, m := range matches {
		for _, id := range l.postings[m.Freq] {
			if !fn(offset+m.PrefixLen, int(id)) {
				return
			}
		}
	}
}

// WordInfo returns the metadata of the entry with the given local id.
func (l *Lexicon) WordInfo(localID int) *WordInfo {
	return &l.infos[localID]
}

// Cost returns the occurrence cost of the entry.
func (l *Lexicon) Cost(localID int) int16 {
	return l.params[localID].cost
}

// SetCost overwrites the occurrence cost of the entry.
func (l *Lexicon) SetCost(localID int, cost int16) {
	l.params[localID].cost = cost
	l.infos[localID].Cost = cost
}

// ConnectionIDs returns the left and right connection ids of the entry.
func (l *Lexicon) ConnectionIDs(localID int) (left, right int16) {
	p := l.params[localID]
	return p.leftID, p.rightID
}

// CalculateCost assigns a cost to every entry still at CostUnset.
// estimate receives the entry surface and returns its cost.
func (l *Lexicon) CalculateCost(estimate func(surface string) (int16, error)) error {
	for i := range l.params {
		if l.params[i].cost != CostUnset {
			continue
		}
		cost, err := estimate(l.infos[i].Surface)
		if err != nil {
			return err
		}
		l.SetCost(i, cost)
	}
	return nil
}

// rebase rewrites user-defined POS ids (>= numSystemPOS) to start at
// posOffset, and stamps dictID on split references.
func (l *Lexicon) rebase(dictID, numSystemPOS, posOffset int) {
	for i := range l.infos {
		info := &l.infos[i]
		if int(info.POSID) >= numSystemPOS {
			info.POSID = int16(int(info.POSID) - numSystemPOS + posOffset)
		}
		info.AUnitSplit = stampSplit(info.AUnitSplit, dictID)
		info.BUnitSplit = stampSplit(info.BUnitSplit, dictID)
	}
}

func stampSplit(ids []WordID, dictID int) []WordID {
	for i, id := range ids {
		ids[i] = NewWordID(dictID, id.LocalID())
	}
	return ids
}
