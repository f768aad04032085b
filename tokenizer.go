package kaiseki

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

// UserDictCostPerMorpheme is added per morpheme when a user entry's cost
// is calibrated, so that a user word is slightly preferred to the path it
// replaces.
const UserDictCostPerMorpheme = -20

// Tokenizer splits text into morphemes. It shares the read-only data of
// its Dictionary and keeps no state between calls, so it is safe for
// concurrent use.
type Tokenizer struct {
	grammar            *dictionary.Grammar
	lexicon            *dictionary.LexiconSet
	inputTextPlugins   []InputTextPlugin
	oovProviderPlugins []OovProviderPlugin
	pathRewritePlugins []PathRewritePlugin

	mode SplitMode
	dump io.Writer
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithMode sets the split mode. The default is ModeC.
func WithMode(mode SplitMode) TokenizerOption {
	return func(t *Tokenizer) { t.mode = mode }
}

// WithDumpOutput makes the tokenizer write the normalized input, the
// lattice and the path before and after rewriting to w. Writes from
// concurrent calls are not serialized.
func WithDumpOutput(w io.Writer) TokenizerOption {
	return func(t *Tokenizer) { t.dump = w }
}

// Mode returns the split mode of the tokenizer.
func (t *Tokenizer) Mode() SplitMode {
	return t.mode
}

// Tokenize analyzes text with the tokenizer's split mode.
func (t *Tokenizer) Tokenize(text string) (*MorphemeList, error) {
	return t.TokenizeMode(t.mode, text)
}

// TokenizeMode analyzes text with the given split mode. text must be
// valid UTF-8 so that the surfaces concatenate back to it.
func (t *Tokenizer) TokenizeMode(mode SplitMode, text string) (*MorphemeList, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}
	builder := NewInputTextBuilder(text, t.grammar)
	if text == "" {
		return newMorphemeList(builder.Build(), t.grammar, t.lexicon, nil)
	}

	for _, p := range t.inputTextPlugins {
		if err := p.Rewrite(builder); err != nil {
			return nil, fmt.Errorf("rewrite input with %T: %w", p, err)
		}
	}
	input := builder.Build()
	if t.dump != nil {
		fmt.Fprintln(t.dump, "=== Input dump")
		fmt.Fprintln(t.dump, input.Text())
	}

	lattice, err := t.buildLattice(input)
	if err != nil {
		return nil, err
	}
	if t.dump != nil {
		fmt.Fprintln(t.dump, "=== Lattice dump")
		lattice.Dump(t.dump)
	}

	path, err := lattice.BestPath()
	if err != nil {
		return nil, err
	}
	if t.dump != nil {
		fmt.Fprintln(t.dump, "=== Before rewriting:")
		t.dumpPath(path)
	}

	for _, p := range t.pathRewritePlugins {
		if path, err = p.Rewrite(input, path, lattice); err != nil {
			return nil, fmt.Errorf("rewrite path with %T: %w", p, err)
		}
	}
	internalCost := pathCost(t.grammar, path)

	if mode != ModeC {
		if path, err = t.splitPath(path, mode); err != nil {
			return nil, err
		}
	}
	if t.dump != nil {
		fmt.Fprintln(t.dump, "=== After rewriting:")
		t.dumpPath(path)
		fmt.Fprintln(t.dump, "===")
	}

	list, err := newMorphemeList(input, t.grammar, t.lexicon, path)
	if err != nil {
		return nil, err
	}
	list.internalCost = internalCost
	return list, nil
}

// buildLattice inserts the lexicon matches and OOV candidates at every
// reachable offset, then closes the lattice.
//
// Every OOV provider runs at every offset where NoOOVBOW is not set. If
// an offset is still uncovered, the first provider runs again as if no
// other word existed there.
func (t *Tokenizer) buildLattice(input *InputText) (*Lattice, error) {
	text := input.Runes()
	lattice := newLattice(t.grammar, t.lexicon, len(text))

	for i := range text {
		if !lattice.HasPreviousNode(i) {
			continue
		}

		hasWords := false
		for m := range t.lexicon.Lookup(text, i) {
			lattice.insert(LatticeNode{
				Begin:   i,
				End:     m.End,
				LeftID:  m.LeftID,
				RightID: m.RightID,
				Cost:    m.Cost,
				WordID:  m.WordID,
			})
			hasWords = true
		}

		if !input.Categories(i).Has(dictionary.NoOOVBOW) {
			for _, p := range t.oovProviderPlugins {
				n, err := t.insertOOV(lattice, p, input, i, hasWords)
				if err != nil {
					return nil, err
				}
				hasWords = hasWords || n > 0
			}
		}
		if !hasWords && len(t.oovProviderPlugins) > 0 {
			n, err := t.insertOOV(lattice, t.oovProviderPlugins[0], input, i, false)
			if err != nil {
				return nil, err
			}
			hasWords = n > 0
		}
		if !hasWords {
			return nil, &LatticeCoverageError{Offset: i}
		}
	}
	lattice.connectEOS()
	return lattice, nil
}

func (t *Tokenizer) insertOOV(lattice *Lattice, p OovProviderPlugin, input *InputText, offset int, hasOtherWords bool) (int, error) {
	nodes, err := p.ProvideOOV(input, offset, hasOtherWords)
	if err != nil {
		return 0, fmt.Errorf("oov provider %T at offset %d: %w", p, offset, err)
	}
	for _, n := range nodes {
		if n.Begin != offset || n.End <= offset || n.End > input.Len() {
			return 0, fmt.Errorf("oov provider %T at offset %d: node spans [%d, %d)", p, offset, n.Begin, n.End)
		}
		lattice.insert(n)
	}
	return len(nodes), nil
}

func (t *Tokenizer) splitPath(path []*LatticeNode, mode SplitMode) ([]*LatticeNode, error) {
	out := make([]*LatticeNode, 0, len(path))
	for _, n := range path {
		info, err := resolveWordInfo(t.lexicon, n)
		if err != nil {
			return nil, err
		}
		parts, err := splitNode(t.lexicon, n, info, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

func (t *Tokenizer) dumpPath(path []*LatticeNode) {
	for i, n := range path {
		fmt.Fprintf(t.dump, "%d: %s\n", i, n)
	}
}

// estimateCost returns the cost a user entry with the given surface gets:
// the internal cost of tokenizing the surface, plus
// UserDictCostPerMorpheme per morpheme.
func (t *Tokenizer) estimateCost(surface string) (int16, error) {
	list, err := t.TokenizeMode(ModeC, surface)
	if err != nil {
		return 0, fmt.Errorf("calibrate cost of %q: %w", surface, err)
	}
	cost := list.InternalCost() + int64(UserDictCostPerMorpheme)*int64(list.Len())
	return clampCost(cost), nil
}

// clampCost narrows a path cost to an occurrence cost. math.MinInt16 is
// reserved for unset costs.
func clampCost(c int64) int16 {
	switch {
	case c > math.MaxInt16:
		return math.MaxInt16
	case c <= math.MinInt16:
		return math.MinInt16 + 1
	}
	return int16(c)
}
