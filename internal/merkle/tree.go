package merkle

import (
	"bytes"
	"fmt"
	"sort"
)

// Entry is one (identity, amount) allocation committed to by a tree.
type Entry struct {
	Identity string `json:"identity"`
	Amount   uint64 `json:"amount"`
}

// Tree is a commitment tree built off-system by the administrator. The chain
// only ever consumes the root and per-leaf proofs; the builder exists for the
// root-generation tool and for tests.
//
// Leaves are sorted ascending by hash before pairing, so the root is
// independent of entry order. Levels with an odd node count promote the
// trailing node unhashed.
type Tree struct {
	entries []Entry
	layers  [][]Hash     // layers[0] = sorted leaves, last layer = [root]
	leafIdx map[Hash]int // leaf hash -> index in layers[0]
}

// NewTree builds a commitment tree over the given entries. Every entry must
// produce a distinct leaf: duplicate (identity, amount) pairs are rejected
// because a shared leaf would make per-participant claim accounting
// ambiguous.
func NewTree(entries []Entry) (*Tree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries")
	}

	leaves := make([]Hash, len(entries))
	for i, e := range entries {
		if e.Identity == "" {
			return nil, fmt.Errorf("entry %d: empty identity", i)
		}
		leaves[i] = Leaf(e.Identity, e.Amount)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	leafIdx := make(map[Hash]int, len(leaves))
	for i, l := range leaves {
		if _, dup := leafIdx[l]; dup {
			return nil, fmt.Errorf("duplicate leaf for identity/amount pair")
		}
		leafIdx[l] = i
	}

	layers := [][]Hash{leaves}
	for cur := leaves; len(cur) > 1; {
		next := make([]Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 == len(cur) {
				next = append(next, cur[i])
				continue
			}
			next = append(next, hashPair(cur[i], cur[i+1]))
		}
		layers = append(layers, next)
		cur = next
	}

	return &Tree{
		entries: append([]Entry(nil), entries...),
		layers:  layers,
		leafIdx: leafIdx,
	}, nil
}

// Root returns the tree's commitment root.
func (t *Tree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.layers[0]) }

// Entries returns the allocations the tree was built over, in input order.
func (t *Tree) Entries() []Entry { return append([]Entry(nil), t.entries...) }

// Proof returns the sibling path proving membership of (identity, amount).
// The returned proof folds to Root() under Verify.
func (t *Tree) Proof(identity string, amount uint64) ([]Hash, error) {
	idx, ok := t.leafIdx[Leaf(identity, amount)]
	if !ok {
		return nil, fmt.Errorf("no leaf for identity %q amount %d", identity, amount)
	}

	proof := []Hash{}
	for _, layer := range t.layers[:len(t.layers)-1] {
		sib := idx ^ 1
		if sib < len(layer) {
			proof = append(proof, layer[sib])
		}
		// An odd trailing node has no sibling at this level; it is promoted
		// and pairs one level up.
		idx /= 2
	}
	return proof, nil
}
