package dictionary

import "fmt"

// MaxDictionaries is the number of lexicons a LexiconSet can hold: the
// system dictionary plus up to MaxDictionaries-1 user dictionaries.
// The bound comes from the 4 bits a WordID reserves for the dictionary index.
const MaxDictionaries = 16

const (
	dictionaryIDShift = 28
	localIDMask       = 1<<dictionaryIDShift - 1
)

// WordID identifies a word entry across all loaded dictionaries.
// The high 4 bits hold the dictionary index (0 = system) and the low
// 28 bits the entry's index inside that dictionary's lexicon.
type WordID uint32

// OOVWordID is carried by synthesized out-of-vocabulary lattice nodes.
const OOVWordID WordID = 1<<32 - 1

// NewWordID packs a dictionary index and a local entry index.
func NewWordID(dictID, localID int) WordID {
	return WordID(uint32(dictID)<<dictionaryIDShift | uint32(localID)&localIDMask)
}

// DictionaryID returns the dictionary index encoded in id.
func (id WordID) DictionaryID() int {
	return int(uint32(id) >> dictionaryIDShift)
}

// LocalID returns the entry index inside its own lexicon.
func (id WordID) LocalID() int {
	return int(uint32(id) & localIDMask)
}

func (id WordID) String() string {
	if id == OOVWordID {
		return "oov"
	}
	return fmt.Sprintf("%d:%d", id.DictionaryID(), id.LocalID())
}
