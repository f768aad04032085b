package kaiseki

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

const noPrevious = -1

// LatticeNode is a candidate morpheme spanning [Begin, End) of the
// normalized text.
type LatticeNode struct {
	Begin   int
	End     int
	LeftID  int16
	RightID int16
	Cost    int16
	WordID  dictionary.WordID
	OOV     bool

	// info is set on nodes that are not backed by a lexicon entry.
	info *dictionary.WordInfo

	totalCost int64
	bestPrev  int32
	connected bool
}

// NewOOVNode returns a synthesized node carrying its own word info.
func NewOOVNode(begin, end int, leftID, rightID, cost int16, info dictionary.WordInfo) LatticeNode {
	return LatticeNode{
		Begin:    begin,
		End:      end,
		LeftID:   leftID,
		RightID:  rightID,
		Cost:     cost,
		WordID:   dictionary.OOVWordID,
		OOV:      true,
		info:     &info,
		bestPrev: noPrevious,
	}
}

// TotalCost returns the cost of the best path from BOS through this node.
func (n *LatticeNode) TotalCost() int64 {
	return n.totalCost
}

// IsConnected reports whether the node is reachable from BOS.
func (n *LatticeNode) IsConnected() bool {
	return n.connected
}

func (n *LatticeNode) String() string {
	return fmt.Sprintf("[%d,%d) %s left=%d right=%d cost=%d total=%d",
		n.Begin, n.End, n.WordID, n.LeftID, n.RightID, n.Cost, n.totalCost)
}

// Lattice is the graph of candidate morphemes of one text. Nodes live in
// a single arena and refer to their best predecessor by index; the best
// path to each node is computed when it is inserted.
type Lattice struct {
	grammar *dictionary.Grammar
	lexicon *dictionary.LexiconSet
	size    int

	nodes []LatticeNode
	// endLists[i] holds the arena indexes of the nodes ending at i.
	endLists [][]int32
	eos      int32
}

func newLattice(grammar *dictionary.Grammar, lexicon *dictionary.LexiconSet, size int) *Lattice {
	l := &Lattice{
		grammar:  grammar,
		lexicon:  lexicon,
		size:     size,
		nodes:    make([]LatticeNode, 1, size*4+2),
		endLists: make([][]int32, size+1),
		eos:      noPrevious,
	}
	l.nodes[0] = LatticeNode{
		LeftID:    dictionary.BOSConnectionID,
		RightID:   dictionary.BOSConnectionID,
		WordID:    dictionary.OOVWordID,
		bestPrev:  noPrevious,
		connected: true,
	}
	l.endLists[0] = []int32{0}
	return l
}

// Size returns the length of the text the lattice covers.
func (l *Lattice) Size() int {
	return l.size
}

// HasPreviousNode reports whether a connected node ends at offset.
func (l *Lattice) HasPreviousNode(offset int) bool {
	for _, i := range l.endLists[offset] {
		if l.nodes[i].connected {
			return true
		}
	}
	return false
}

// insert adds n and connects it to its cheapest predecessor. Nodes with
// no connected predecessor are kept but stay unreachable.
func (l *Lattice) insert(n LatticeNode) int32 {
	l.connect(&n)
	idx := int32(len(l.nodes))
	l.nodes = append(l.nodes, n)
	l.endLists[n.End] = append(l.endLists[n.End], idx)
	return idx
}

func (l *Lattice) connect(n *LatticeNode) {
	n.bestPrev = noPrevious
	n.connected = false
	best := int64(math.MaxInt64)
	for _, i := range l.endLists[n.Begin] {
		p := &l.nodes[i]
		if !p.connected {
			continue
		}
		cost := p.totalCost + int64(l.grammar.ConnectCost(p.RightID, n.LeftID))
		if cost < best {
			best = cost
			n.bestPrev = i
		}
	}
	if n.bestPrev == noPrevious {
		return
	}
	n.connected = true
	n.totalCost = best + int64(n.Cost)
}

// connectEOS closes the lattice. No node may be inserted afterwards.
func (l *Lattice) connectEOS() {
	eos := LatticeNode{
		Begin:   l.size,
		End:     l.size,
		LeftID:  dictionary.EOSConnectionID,
		RightID: dictionary.EOSConnectionID,
		WordID:  dictionary.OOVWordID,
	}
	l.connect(&eos)
	l.eos = int32(len(l.nodes))
	l.nodes = append(l.nodes, eos)
}

// BestPath returns the minimum cost path from BOS to EOS, sentinels
// excluded. The returned nodes point into the lattice.
func (l *Lattice) BestPath() ([]*LatticeNode, error) {
	if l.eos == noPrevious || !l.nodes[l.eos].connected {
		return nil, ErrUnreachableEOS
	}
	var path []*LatticeNode
	for i := l.nodes[l.eos].bestPrev; i != 0; i = l.nodes[i].bestPrev {
		path = append(path, &l.nodes[i])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Cost returns the total cost of the best path.
func (l *Lattice) Cost() int64 {
	if l.eos == noPrevious {
		return 0
	}
	return l.nodes[l.eos].totalCost
}

// NodesAt returns the nodes spanning exactly [begin, end).
func (l *Lattice) NodesAt(begin, end int) []*LatticeNode {
	var out []*LatticeNode
	for _, i := range l.endLists[end] {
		if n := &l.nodes[i]; i != 0 && n.Begin == begin {
			out = append(out, n)
		}
	}
	return out
}

// MinimumNode returns the cheapest node spanning exactly [begin, end),
// or nil.
func (l *Lattice) MinimumNode(begin, end int) *LatticeNode {
	var best *LatticeNode
	for _, n := range l.NodesAt(begin, end) {
		if best == nil || n.Cost < best.Cost {
			best = n
		}
	}
	return best
}

// reconnect returns a copy of n whose best predecessor is the last node
// of prefix, or BOS when prefix is empty.
func (l *Lattice) reconnect(n *LatticeNode, prefix []*LatticeNode) *LatticeNode {
	c := *n
	prevTotal, prevRight, prevIdx := int64(0), dictionary.BOSConnectionID, int32(0)
	if len(prefix) > 0 {
		p := prefix[len(prefix)-1]
		prevTotal, prevRight, prevIdx = p.totalCost, p.RightID, l.indexOf(p)
	}
	c.bestPrev = prevIdx
	c.totalCost = prevTotal + int64(l.grammar.ConnectCost(prevRight, c.LeftID)) + int64(c.Cost)
	c.connected = true
	return &c
}

// indexOf returns the arena index of n, or noPrevious when n was not
// inserted into the lattice.
func (l *Lattice) indexOf(n *LatticeNode) int32 {
	for _, i := range l.endLists[n.End] {
		if &l.nodes[i] == n {
			return i
		}
	}
	return noPrevious
}

// WordInfo resolves the word info of n.
func (l *Lattice) WordInfo(n *LatticeNode) (dictionary.WordInfo, error) {
	return resolveWordInfo(l.lexicon, n)
}

func resolveWordInfo(lexicon *dictionary.LexiconSet, n *LatticeNode) (dictionary.WordInfo, error) {
	if n.info != nil {
		return *n.info, nil
	}
	return lexicon.WordInfo(n.WordID)
}

// Dump writes every node grouped by end offset.
func (l *Lattice) Dump(w io.Writer) {
	for end, list := range l.endLists {
		for _, i := range list {
			if i == 0 {
				continue
			}
			n := &l.nodes[i]
			surface := "(null)"
			if info, err := l.WordInfo(n); err == nil {
				surface = info.Surface
			}
			prev := "-"
			if n.connected {
				prev = fmt.Sprint(n.bestPrev)
			}
			fmt.Fprintf(w, "%d: %d: %s %s prev=%s\n", end, i, surface, n.String(), prev)
		}
	}
	fmt.Fprintf(w, "%s\nEOS total=%d\n", strings.Repeat("-", 8), l.Cost())
}
