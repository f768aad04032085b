package dictionary

import (
	"fmt"
	"iter"
)

// Match is one result of a common-prefix lookup.
type Match struct {
	// End is the offset just past the matched surface.
	End     int
	WordID  WordID
	LeftID  int16
	RightID int16
	Cost    int16
}

// LexiconSet is the ordered collection of loaded lexicons. Index 0 is the
// system dictionary; user dictionaries follow in merge order.
type LexiconSet struct {
	lexicons     []*Lexicon
	numSystemPOS int
}

// NewLexiconSet starts a set with the system lexicon. numSystemPOS is the
// size of the system grammar's POS table.
func NewLexiconSet(system *Lexicon, numSystemPOS int) *LexiconSet {
	return &LexiconSet{
		lexicons:     []*Lexicon{system},
		numSystemPOS: numSystemPOS,
	}
}

// IsFull reports whether no further dictionary can be added.
func (s *LexiconSet) IsFull() bool {
	return len(s.lexicons) >= MaxDictionaries
}

// Len returns the number of lexicons, system included.
func (s *LexiconSet) Len() int {
	return len(s.lexicons)
}

// Add appends a user lexicon and returns its dictionary id. User-defined
// POS ids in the lexicon are shifted to start at posOffset.
func (s *LexiconSet) Add(l *Lexicon, posOffset int) (int, error) {
	if s.IsFull() {
		return 0, ErrTooManyDictionaries
	}
	dictID := len(s.lexicons)
	l.rebase(dictID, s.numSystemPOS, posOffset)
	s.lexicons = append(s.lexicons, l)
	return dictID, nil
}

// Lookup yields every entry whose surface matches text at offset,
// dictionaries in ascending index order.
func (s *LexiconSet) Lookup(text []rune, offset int) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		if offset < 0 || offset >= len(text) {
			return
		}
		for dictID, lex := range s.lexicons {
			done := false
			lex.lookup(text, offset, func(end, localID int) bool {
				p := lex.params[localID]
				m := Match{
					End:     end,
					WordID:  NewWordID(dictID, localID),
					LeftID:  p.leftID,
					RightID: p.rightID,
					Cost:    p.cost,
				}
				if !yield(m) {
					done = true
				}
				return !done
			})
			if done {
				return
			}
		}
	}
}

func (s *LexiconSet) lexicon(id WordID) (*Lexicon, error) {
	d := id.DictionaryID()
	if id == OOVWordID || d >= len(s.lexicons) || id.LocalID() >= s.lexicons[d].Size() {
		return nil, fmt.Errorf("word id %s out of range", id)
	}
	return s.lexicons[d], nil
}

// WordInfo returns a copy of the entry metadata for id.
func (s *LexiconSet) WordInfo(id WordID) (WordInfo, error) {
	lex, err := s.lexicon(id)
	if err != nil {
		return WordInfo{}, err
	}
	return *lex.WordInfo(id.LocalID()), nil
}

// Cost returns the occurrence cost for id.
func (s *LexiconSet) Cost(id WordID) (int16, error) {
	lex, err := s.lexicon(id)
	if err != nil {
		return 0, err
	}
	return lex.Cost(id.LocalID()), nil
}

// ConnectionIDs returns the left and right connection ids for id.
func (s *LexiconSet) ConnectionIDs(id WordID) (left, right int16, err error) {
	lex, err := s.lexicon(id)
	if err != nil {
		return 0, 0, err
	}
	left, right = lex.ConnectionIDs(id.LocalID())
	return left, right, nil
}

// Size returns the total number of entries across all lexicons.
func (s *LexiconSet) Size() int {
	n := 0
	for _, l := range s.lexicons {
		n += l.Size()
	}
	return n
}
