package dictionary

// WordInfo is the metadata of a word entry.
type WordInfo struct {
	Surface string
	// HeadwordLength is the surface length in characters.
	HeadwordLength int16
	POSID          int16
	NormalizedForm string
	DictionaryForm string
	ReadingForm    string
	// AUnitSplit and BUnitSplit list the entries this word splits into
	// in the shorter split modes. Empty means the word is not split.
	AUnitSplit []WordID
	BUnitSplit []WordID
	// Cost is the occurrence cost of the entry.
	Cost int16
}
