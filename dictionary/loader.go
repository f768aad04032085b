package dictionary

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edsrzf/mmap-go"
)

// Source file names inside a system dictionary directory.
const (
	MatrixFile  = "matrix.def"
	LexiconFile = "lex.csv"
)

// lexicon CSV columns.
const (
	colSurface = iota
	colLeftID
	colRightID
	colCost
	colPOS
	colReading = colPOS + POSDepth
	colNormalized
	colDictionaryForm
	colASplit
	colBSplit
	numColumns
)

// Bundle is a loaded dictionary: its grammar and its lexicon. For a user
// dictionary the grammar only holds the POS entries it defines itself.
type Bundle struct {
	Grammar *Grammar
	Lexicon *Lexicon
}

// ReadSystemDictionary loads dir/matrix.def and dir/lex.csv.
func ReadSystemDictionary(dir string) (*Bundle, error) {
	grammar, err := readMatrix(filepath.Join(dir, MatrixFile))
	if err != nil {
		return nil, err
	}

	table := newPOSTable(nil)
	entries, err := readLexicon(filepath.Join(dir, LexiconFile), grammar, table, false)
	if err != nil {
		return nil, err
	}
	for _, p := range table.local {
		grammar.appendPOS(p)
	}
	grammar.systemPOSSize = len(grammar.posList)

	lexicon, err := NewLexicon(entries)
	if err != nil {
		return nil, fmt.Errorf("system dictionary %s: %w", dir, err)
	}
	return &Bundle{Grammar: grammar, Lexicon: lexicon}, nil
}

// ReadUserDictionary loads a user lexicon CSV against the system grammar.
// POS tuples known to the system keep their ids; new tuples get ids from
// system.SystemPOSSize() upward and are listed in the returned Grammar.
// Entries with an empty or "*" cost are left at CostUnset.
func ReadUserDictionary(path string, system *Grammar) (*Bundle, error) {
	table := newPOSTable(system)
	entries, err := readLexicon(path, system, table, true)
	if err != nil {
		return nil, err
	}
	lexicon, err := NewLexicon(entries)
	if err != nil {
		return nil, fmt.Errorf("user dictionary %s: %w", path, err)
	}
	return &Bundle{Grammar: newUserGrammar(table.local), Lexicon: lexicon}, nil
}

// ReadCharacterDefinitionFile loads a char.def file.
func ReadCharacterDefinitionFile(path string) (*CharacterCategory, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	c := NewCharacterCategory()
	if err := c.ReadCharacterDefinition(bytes.NewReader(data), path); err != nil {
		return nil, err
	}
	return c, nil
}

// mapFile maps path read-only. The returned release func unmaps it and
// closes the file.
func mapFile(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load resource: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, func() { _ = f.Close() }, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return m, func() {
		_ = m.Unmap()
		_ = f.Close()
	}, nil
}

// readMatrix reads matrix.def: a "leftSize rightSize" header followed by
// "left right cost" lines. Missing cells cost 0.
func readMatrix(path string) (*Grammar, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	var (
		leftSize, rightSize int
		costs               []int16
	)
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if costs == nil {
			if len(fields) != 2 {
				return nil, malformed(path, lineNo, "header must be \"leftSize rightSize\"")
			}
			leftSize, err = strconv.Atoi(fields[0])
			if err != nil || leftSize <= 0 {
				return nil, malformed(path, lineNo, "bad left size %q", fields[0])
			}
			rightSize, err = strconv.Atoi(fields[1])
			if err != nil || rightSize <= 0 {
				return nil, malformed(path, lineNo, "bad right size %q", fields[1])
			}
			costs = make([]int16, leftSize*rightSize)
			continue
		}
		if len(fields) != 3 {
			return nil, malformed(path, lineNo, "want \"left right cost\"")
		}
		left, err1 := strconv.Atoi(fields[0])
		right, err2 := strconv.Atoi(fields[1])
		cost, err3 := strconv.ParseInt(fields[2], 10, 16)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, malformed(path, lineNo, "bad matrix line")
		}
		if left < 0 || left >= leftSize || right < 0 || right >= rightSize {
			return nil, malformed(path, lineNo, "cell (%d,%d) outside %dx%d", left, right, leftSize, rightSize)
		}
		costs[left*rightSize+right] = int16(cost)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if costs == nil {
		return nil, malformed(path, 0, "missing header")
	}
	return NewGrammar(nil, leftSize, rightSize, costs)
}

// posTable interns POS tuples. With a base grammar, tuples already in the
// system part of base resolve to their system id.
type posTable struct {
	base  *Grammar
	local []POS
	index map[string]int16
}

func newPOSTable(base *Grammar) *posTable {
	return &posTable{base: base, index: make(map[string]int16)}
}

func (t *posTable) id(p POS) int16 {
	offset := 0
	if t.base != nil {
		if id := t.base.systemPOSID(p); id >= 0 {
			return id
		}
		offset = t.base.SystemPOSSize()
	}
	if id, ok := t.index[p.key()]; ok {
		return id
	}
	id := int16(offset + len(t.local))
	t.local = append(t.local, p)
	t.index[p.key()] = id
	return id
}

// readLexicon parses a lex.csv file. Connection ids are checked against
// grammar's matrix.
func readLexicon(path string, grammar *Grammar, pos *posTable, user bool) ([]Entry, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var entries []Entry
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
		}
		line, _ := r.FieldPos(0)
		e, err := parseEntry(record, grammar, pos, user)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Err: fmt.Errorf("%w: %w", ErrInvalidFormat, err)}
		}
		entries = append(entries, e)
	}

	for i, e := range entries {
		for _, id := range append(append([]WordID(nil), e.Info.AUnitSplit...), e.Info.BUnitSplit...) {
			if id.LocalID() >= len(entries) {
				return nil, malformed(path, 0, "entry %d splits into unknown entry %d", i, id.LocalID())
			}
		}
	}
	return entries, nil
}

func parseEntry(record []string, grammar *Grammar, pos *posTable, user bool) (Entry, error) {
	if len(record) < numColumns {
		return Entry{}, fmt.Errorf("want %d columns, got %d", numColumns, len(record))
	}
	surface := record[colSurface]
	if surface == "" {
		return Entry{}, errors.New("empty surface")
	}
	left, err := parseInt16(record[colLeftID])
	if err != nil {
		return Entry{}, fmt.Errorf("left id: %w", err)
	}
	right, err := parseInt16(record[colRightID])
	if err != nil {
		return Entry{}, fmt.Errorf("right id: %w", err)
	}
	if err := grammar.CheckConnection(left, right); err != nil {
		return Entry{}, err
	}

	cost := CostUnset
	if c := record[colCost]; !(user && (c == "" || c == "*")) {
		if cost, err = parseInt16(c); err != nil {
			return Entry{}, fmt.Errorf("cost: %w", err)
		}
		if cost == CostUnset {
			return Entry{}, fmt.Errorf("cost %d is reserved", cost)
		}
	}

	p := make(POS, POSDepth)
	copy(p, record[colPOS:colPOS+POSDepth])

	aSplit, err := parseSplit(record[colASplit])
	if err != nil {
		return Entry{}, fmt.Errorf("a split: %w", err)
	}
	bSplit, err := parseSplit(record[colBSplit])
	if err != nil {
		return Entry{}, fmt.Errorf("b split: %w", err)
	}

	return Entry{
		LeftID:  left,
		RightID: right,
		Cost:    cost,
		Info: WordInfo{
			Surface:        surface,
			POSID:          pos.id(p),
			ReadingForm:    orSurface(record[colReading], surface),
			NormalizedForm: orSurface(record[colNormalized], surface),
			DictionaryForm: orSurface(record[colDictionaryForm], surface),
			AUnitSplit:     aSplit,
			BUnitSplit:     bSplit,
		},
	}, nil
}

func parseInt16(s string) (int16, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

func orSurface(s, surface string) string {
	if s == "" || s == "*" {
		return surface
	}
	return s
}

// parseSplit reads "*" or a "/"-separated list of local entry indexes.
func parseSplit(s string) ([]WordID, error) {
	if s == "" || s == "*" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	ids := make([]WordID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad word index %q", p)
		}
		ids = append(ids, NewWordID(0, n))
	}
	return ids, nil
}
