package kaiseki

import (
	"fmt"
	"iter"
	"strings"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

// SplitMode selects the granularity of the output morphemes.
type SplitMode int

const (
	// ModeC emits the longest units found in the lexicon.
	ModeC SplitMode = iota
	// ModeB splits entries into their middle units.
	ModeB
	// ModeA splits entries into their shortest units.
	ModeA
)

// ParseSplitMode accepts "A", "B" or "C", case-insensitively.
func ParseSplitMode(s string) (SplitMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return ModeA, nil
	case "B":
		return ModeB, nil
	case "C", "":
		return ModeC, nil
	}
	return ModeC, fmt.Errorf("unknown split mode %q (want A, B or C)", s)
}

func (m SplitMode) String() string {
	switch m {
	case ModeA:
		return "A"
	case ModeB:
		return "B"
	default:
		return "C"
	}
}

// MorphemeList is the result of one tokenization.
type MorphemeList struct {
	input   *InputText
	grammar *dictionary.Grammar
	lexicon *dictionary.LexiconSet
	path    []*LatticeNode
	infos   []dictionary.WordInfo

	internalCost int64
}

func newMorphemeList(input *InputText, grammar *dictionary.Grammar, lexicon *dictionary.LexiconSet, path []*LatticeNode) (*MorphemeList, error) {
	infos := make([]dictionary.WordInfo, len(path))
	for i, n := range path {
		info, err := resolveWordInfo(lexicon, n)
		if err != nil {
			return nil, fmt.Errorf("resolve word at [%d, %d): %w", n.Begin, n.End, err)
		}
		infos[i] = info
	}
	return &MorphemeList{
		input:        input,
		grammar:      grammar,
		lexicon:      lexicon,
		path:         path,
		infos:        infos,
		internalCost: pathCost(grammar, path),
	}, nil
}

// pathCost sums the occurrence costs of path and the connection costs
// between neighbors. The connections to BOS and EOS are left out.
func pathCost(grammar *dictionary.Grammar, path []*LatticeNode) int64 {
	var cost int64
	for i, n := range path {
		cost += int64(n.Cost)
		if i > 0 {
			cost += int64(grammar.ConnectCost(path[i-1].RightID, n.LeftID))
		}
	}
	return cost
}

// Len returns the number of morphemes.
func (l *MorphemeList) Len() int {
	return len(l.path)
}

// Get returns the i-th morpheme.
func (l *MorphemeList) Get(i int) Morpheme {
	return Morpheme{
		node:    l.path[i],
		info:    l.infos[i],
		input:   l.input,
		grammar: l.grammar,
		lexicon: l.lexicon,
	}
}

// All iterates over the morphemes in text order.
func (l *MorphemeList) All() iter.Seq2[int, Morpheme] {
	return func(yield func(int, Morpheme) bool) {
		for i := range l.path {
			if !yield(i, l.Get(i)) {
				return
			}
		}
	}
}

// InternalCost returns the path cost of the tokenization, excluding the
// BOS and EOS connections.
func (l *MorphemeList) InternalCost() int64 {
	return l.internalCost
}

// Surfaces returns the surface of every morpheme.
func (l *MorphemeList) Surfaces() []string {
	out := make([]string, len(l.path))
	for i := range l.path {
		out[i] = l.Get(i).Surface()
	}
	return out
}

// Input returns the normalized input text.
func (l *MorphemeList) Input() *InputText {
	return l.input
}

// Morpheme is a read-only view of one node of a tokenization result.
type Morpheme struct {
	node    *LatticeNode
	info    dictionary.WordInfo
	input   *InputText
	grammar *dictionary.Grammar
	lexicon *dictionary.LexiconSet
}

// Begin returns the start offset in the original text, in characters.
func (m Morpheme) Begin() int {
	return m.input.OriginalOffset(m.node.Begin)
}

// End returns the end offset in the original text, in characters.
func (m Morpheme) End() int {
	return m.input.OriginalOffset(m.node.End)
}

// Surface returns the original text the morpheme was read from.
func (m Morpheme) Surface() string {
	return m.input.OriginalSlice(m.node.Begin, m.node.End)
}

// PartOfSpeech returns the POS tuple, nil if the id is unknown.
func (m Morpheme) PartOfSpeech() dictionary.POS {
	return m.grammar.POSString(m.info.POSID)
}

// PartOfSpeechID returns the POS id.
func (m Morpheme) PartOfSpeechID() int16 {
	return m.info.POSID
}

// DictionaryForm returns the dictionary form (lemma) of the word.
func (m Morpheme) DictionaryForm() string {
	return m.info.DictionaryForm
}

// NormalizedForm returns the normalized spelling of the word.
func (m Morpheme) NormalizedForm() string {
	return m.info.NormalizedForm
}

// ReadingForm returns the reading in katakana, empty when unknown.
func (m Morpheme) ReadingForm() string {
	return m.info.ReadingForm
}

// IsOOV reports whether the morpheme was synthesized by an OOV provider.
func (m Morpheme) IsOOV() bool {
	return m.node.OOV
}

// WordID returns the lexicon word id, dictionary.OOVWordID for
// synthesized words.
func (m Morpheme) WordID() dictionary.WordID {
	return m.node.WordID
}

// DictionaryID returns the index of the dictionary the word comes from
// (0 for the system dictionary), or -1 for synthesized words.
func (m Morpheme) DictionaryID() int {
	if m.node.WordID == dictionary.OOVWordID {
		return -1
	}
	return m.node.WordID.DictionaryID()
}

// WordInfo returns a copy of the word's metadata.
func (m Morpheme) WordInfo() dictionary.WordInfo {
	return m.info
}

// Split returns the morpheme divided according to mode. A morpheme with
// no split for mode comes back as a single-element list.
func (m Morpheme) Split(mode SplitMode) (*MorphemeList, error) {
	path, err := splitNode(m.lexicon, m.node, m.info, mode)
	if err != nil {
		return nil, err
	}
	return newMorphemeList(m.input, m.grammar, m.lexicon, path)
}

// splitNode returns the nodes n divides into for mode.
func splitNode(lexicon *dictionary.LexiconSet, n *LatticeNode, info dictionary.WordInfo, mode SplitMode) ([]*LatticeNode, error) {
	var ids []dictionary.WordID
	switch mode {
	case ModeA:
		ids = info.AUnitSplit
	case ModeB:
		ids = info.BUnitSplit
	}
	if len(ids) <= 1 {
		return []*LatticeNode{n}, nil
	}

	out := make([]*LatticeNode, 0, len(ids))
	offset := n.Begin
	for _, id := range ids {
		sub, err := lexicon.WordInfo(id)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", n.WordID, err)
		}
		left, right, err := lexicon.ConnectionIDs(id)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", n.WordID, err)
		}
		end := min(offset+int(sub.HeadwordLength), n.End)
		out = append(out, &LatticeNode{
			Begin:     offset,
			End:       end,
			LeftID:    left,
			RightID:   right,
			Cost:      sub.Cost,
			WordID:    id,
			totalCost: n.totalCost,
			bestPrev:  noPrevious,
			connected: true,
		})
		offset = end
	}
	out[len(out)-1].End = n.End
	return out, nil
}
