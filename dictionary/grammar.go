package dictionary

import (
	"fmt"
	"strings"
)

// POSDepth is the number of subcategory fields in a part-of-speech tuple.
const POSDepth = 6

// POS is a part-of-speech tuple, e.g. {"名詞", "普通名詞", "一般", "*", "*", "*"}.
type POS []string

func (p POS) key() string {
	return strings.Join(p, ",")
}

// BOS and EOS sentinels connect through connection id 0.
const (
	BOSConnectionID int16 = 0
	EOSConnectionID int16 = 0
)

// Grammar holds the part-of-speech table and the connection cost matrix.
//
// The matrix is indexed by (left, right) where left is the right connection
// id of the preceding node and right is the left connection id of the
// following node. Both sentinels use id 0.
type Grammar struct {
	posList  []POS
	posIndex map[string]int16

	// systemPOSSize is the size of posList before any user dictionary
	// was merged. User dictionaries resolve their POS against it.
	systemPOSSize int

	leftSize  int
	rightSize int
	costs     []int16

	// CharCategory classifies input characters. It is attached once the
	// character definition has been read.
	CharCategory *CharacterCategory
}

// NewGrammar builds a Grammar from a POS table and a dense
// leftSize x rightSize cost matrix in row-major order.
func NewGrammar(posList []POS, leftSize, rightSize int, costs []int16) (*Grammar, error) {
	if leftSize <= 0 || rightSize <= 0 {
		return nil, fmt.Errorf("%w: matrix size %dx%d", ErrInvalidFormat, leftSize, rightSize)
	}
	if len(costs) != leftSize*rightSize {
		return nil, fmt.Errorf("%w: matrix has %d cells, want %d",
			ErrInvalidFormat, len(costs), leftSize*rightSize)
	}
	g := &Grammar{
		posIndex:  make(map[string]int16, len(posList)),
		leftSize:  leftSize,
		rightSize: rightSize,
		costs:     costs,
	}
	for _, p := range posList {
		g.appendPOS(p)
	}
	g.systemPOSSize = len(g.posList)
	return g, nil
}

// newUserGrammar returns a Grammar holding only a user dictionary's own
// POS entries. It has no matrix: user entries connect through the
// system matrix.
func newUserGrammar(posList []POS) *Grammar {
	g := &Grammar{posIndex: make(map[string]int16, len(posList))}
	for _, p := range posList {
		g.appendPOS(p)
	}
	return g
}

func (g *Grammar) appendPOS(p POS) int16 {
	id := int16(len(g.posList))
	g.posList = append(g.posList, p)
	if _, ok := g.posIndex[p.key()]; !ok {
		g.posIndex[p.key()] = id
	}
	return id
}

// POSSize returns the number of POS entries.
func (g *Grammar) POSSize() int {
	return len(g.posList)
}

// SystemPOSSize returns the number of POS entries defined by the system
// dictionary.
func (g *Grammar) SystemPOSSize() int {
	return g.systemPOSSize
}

// POSString returns the POS tuple for id, or nil when id is out of range.
func (g *Grammar) POSString(id int16) POS {
	if id < 0 || int(id) >= len(g.posList) {
		return nil
	}
	return g.posList[id]
}

// POSID returns the id of the given POS tuple, or -1 if it is unknown.
func (g *Grammar) POSID(pos ...string) int16 {
	if id, ok := g.posIndex[POS(pos).key()]; ok {
		return id
	}
	return -1
}

// systemPOSID is POSID restricted to the system dictionary's entries.
func (g *Grammar) systemPOSID(pos POS) int16 {
	id, ok := g.posIndex[pos.key()]
	if !ok || int(id) >= g.systemPOSSize {
		return -1
	}
	return id
}

// RegisterPOS returns the id of pos, appending it to the table when it is
// not known yet. The system POS size is unaffected.
func (g *Grammar) RegisterPOS(pos POS) int16 {
	if id, ok := g.posIndex[pos.key()]; ok {
		return id
	}
	return g.appendPOS(append(POS(nil), pos...))
}

// AddPOSList appends other's POS entries and returns the id assigned to
// the first of them. Existing ids are never renumbered.
func (g *Grammar) AddPOSList(other *Grammar) int {
	start := len(g.posList)
	for _, p := range other.posList {
		g.appendPOS(p)
	}
	return start
}

// ConnectCost returns the cost of placing a node whose right connection id
// is left before a node whose left connection id is right.
func (g *Grammar) ConnectCost(left, right int16) int16 {
	return g.costs[int(left)*g.rightSize+int(right)]
}

// SetConnectCost overwrites a single matrix cell.
func (g *Grammar) SetConnectCost(left, right, cost int16) {
	g.costs[int(left)*g.rightSize+int(right)] = cost
}

// MatrixSize returns the matrix dimensions.
func (g *Grammar) MatrixSize() (left, right int) {
	return g.leftSize, g.rightSize
}

// CheckConnection reports whether an entry with the given connection ids
// can be connected on both sides through this grammar's matrix.
func (g *Grammar) CheckConnection(leftID, rightID int16) error {
	if leftID < 0 || int(leftID) >= g.rightSize {
		return fmt.Errorf("%w: left id %d (matrix accepts 0..%d)", ErrUndefinedConnection, leftID, g.rightSize-1)
	}
	if rightID < 0 || int(rightID) >= g.leftSize {
		return fmt.Errorf("%w: right id %d (matrix accepts 0..%d)", ErrUndefinedConnection, rightID, g.leftSize-1)
	}
	return nil
}
