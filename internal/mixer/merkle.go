// merkle.go - Incremental Poseidon2 Merkle tree over deposit commitments.
//
// The tree has fixed depth 20 (capacity 2^20 leaves). Only materialized nodes
// are stored, keyed by (level, index); every absent coordinate resolves to the
// precomputed zero value of its level, so storage stays O(leaves * depth).

package mixer

// TreeDepth is the fixed height of the commitment tree.
const TreeDepth = 20

// maxLeaves is the tree capacity, 2^TreeDepth.
const maxLeaves = 1 << TreeDepth

// zeros[l] is the root of an empty subtree of height l:
// zeros[0] = 0, zeros[l] = Hash2(zeros[l-1], zeros[l-1]).
var zeros [TreeDepth + 1]Field

func init() {
	for l := 1; l <= TreeDepth; l++ {
		zeros[l] = Hash2(zeros[l-1], zeros[l-1])
	}
}

// ZeroValue returns the default node value at the given level.
func ZeroValue(level int) Field {
	return zeros[level]
}

// nodeKey addresses one materialized node. Level 0 is the leaf level.
type nodeKey struct {
	level uint8
	index uint32
}

// Proof is an inclusion proof for one leaf against the tree's current root.
// Siblings[l] is the sibling at level l; IsEven[l] records whether the tracked
// node was the left child there, fixing hash argument order for the verifier.
type Proof struct {
	Root     Field
	Siblings [TreeDepth]Field
	IsEven   [TreeDepth]bool
}

// Tree is the client-side mirror of the on-ledger commitment accumulator.
// Not safe for concurrent use; each withdrawal flow owns its own snapshot.
type Tree struct {
	nodes  map[nodeKey]Field
	leaves []Field
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[nodeKey]Field)}
}

// Size returns the number of inserted leaves.
func (t *Tree) Size() int {
	return len(t.leaves)
}

// Root returns the current root, or the depth-20 zero value for an empty tree.
func (t *Tree) Root() Field {
	if r, ok := t.nodes[nodeKey{level: TreeDepth, index: 0}]; ok {
		return r
	}
	return zeros[TreeDepth]
}

// node fetches a materialized node or the zero value of its level.
func (t *Tree) node(level uint8, index uint32) Field {
	if v, ok := t.nodes[nodeKey{level: level, index: index}]; ok {
		return v
	}
	return zeros[level]
}

// Insert appends a leaf at the next free index and recomputes the path up to
// the root. Returns the assigned leaf index, or ErrCapacityExceeded when the
// tree is full. Inserting the same value twice is legal and yields a second,
// distinct index.
func (t *Tree) Insert(leaf Field) (uint32, error) {
	if len(t.leaves) >= maxLeaves {
		return 0, ErrCapacityExceeded
	}
	index := uint32(len(t.leaves))
	t.leaves = append(t.leaves, leaf)

	cur := leaf
	curIdx := index
	t.nodes[nodeKey{level: 0, index: curIdx}] = cur
	for level := uint8(0); level < TreeDepth; level++ {
		sibling := t.node(level, curIdx^1)
		if curIdx%2 == 0 {
			cur = Hash2(cur, sibling)
		} else {
			cur = Hash2(sibling, cur)
		}
		curIdx /= 2
		t.nodes[nodeKey{level: level + 1, index: curIdx}] = cur
	}
	return index, nil
}

// Proof regenerates the inclusion proof for an inserted leaf. Sibling values
// are live: later insertions that changed a sibling are reflected, matching
// the root returned alongside. Returns ErrLeafNotFound for an unused index.
func (t *Tree) Proof(index uint32) (*Proof, error) {
	if int(index) >= len(t.leaves) {
		return nil, ErrLeafNotFound
	}
	p := &Proof{Root: t.Root()}
	curIdx := index
	for level := uint8(0); level < TreeDepth; level++ {
		p.Siblings[level] = t.node(level, curIdx^1)
		p.IsEven[level] = curIdx%2 == 0
		curIdx /= 2
	}
	return p, nil
}

// IndexOf finds the first leaf equal to the given commitment by linear scan.
// Only clients holding the original commitment use this; leaf values are
// secret-derived and the lookup is not protocol state.
func (t *Tree) IndexOf(leaf Field) (uint32, error) {
	for i, l := range t.leaves {
		if l == leaf {
			return uint32(i), nil
		}
	}
	return 0, ErrLeafNotFound
}

// VerifyProof folds a leaf against the proof's siblings in parity order and
// reports whether it reproduces the proof's root.
func VerifyProof(leaf Field, p *Proof) bool {
	cur := leaf
	for level := 0; level < TreeDepth; level++ {
		if p.IsEven[level] {
			cur = Hash2(cur, p.Siblings[level])
		} else {
			cur = Hash2(p.Siblings[level], cur)
		}
	}
	return cur == p.Root
}
