package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeaf_Deterministic(t *testing.T) {
	a := Leaf("alice", 100)
	b := Leaf("alice", 100)
	require.Equal(t, a, b)

	require.NotEqual(t, a, Leaf("alice", 101))
	require.NotEqual(t, a, Leaf("alicf", 100))
}

func TestLeaf_IsDoubleHashed(t *testing.T) {
	// A leaf must be the hash of a single 32-byte value, never the single
	// hash of the raw pre-image, so it cannot collide with an internal node
	// (which hashes a 64-byte concatenation).
	var amt [8]byte
	amt[7] = 100
	single := keccak256([]byte("alice"), amt[:])
	require.NotEqual(t, single, Leaf("alice", 100))
	require.Equal(t, keccak256(single[:]), Leaf("alice", 100))
}

func TestVerify_SingleLeafTree(t *testing.T) {
	tree, err := NewTree([]Entry{{Identity: "alice", Amount: 7}})
	require.NoError(t, err)
	require.Equal(t, 1, tree.Len())
	require.Equal(t, Leaf("alice", 7), tree.Root())

	proof, err := tree.Proof("alice", 7)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.True(t, Verify(tree.Root(), "alice", 7, proof))
	require.False(t, Verify(tree.Root(), "alice", 8, proof))
}

func TestVerify_ThreeLeaves(t *testing.T) {
	entries := []Entry{
		{Identity: "p1", Amount: 1},
		{Identity: "p2", Amount: 1},
		{Identity: "p3", Amount: 1},
	}
	tree, err := NewTree(entries)
	require.NoError(t, err)
	root := tree.Root()
	require.False(t, root.IsZero())

	for _, e := range entries {
		proof, err := tree.Proof(e.Identity, e.Amount)
		require.NoError(t, err)
		require.True(t, Verify(root, e.Identity, e.Amount, proof), "leaf %s", e.Identity)
		// Correct proof, wrong amount.
		require.False(t, Verify(root, e.Identity, e.Amount+1, proof))
	}

	// A non-member cannot reuse a member's proof.
	proof, err := tree.Proof("p1", 1)
	require.NoError(t, err)
	require.False(t, Verify(root, "p4", 1, proof))

	_, err = tree.Proof("p4", 1)
	require.Error(t, err)
}

func TestNewTree_RootIndependentOfEntryOrder(t *testing.T) {
	a, err := NewTree([]Entry{{"p1", 5}, {"p2", 10}, {"p3", 15}, {"p4", 20}})
	require.NoError(t, err)
	b, err := NewTree([]Entry{{"p4", 20}, {"p2", 10}, {"p1", 5}, {"p3", 15}})
	require.NoError(t, err)
	require.Equal(t, a.Root(), b.Root())
}

func TestNewTree_RejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := NewTree(nil)
	require.Error(t, err)

	_, err = NewTree([]Entry{{"p1", 5}, {"p1", 5}})
	require.ErrorContains(t, err, "duplicate leaf")

	_, err = NewTree([]Entry{{"", 5}})
	require.ErrorContains(t, err, "empty identity")

	// Same identity with different amounts is two distinct leaves.
	tree, err := NewTree([]Entry{{"p1", 5}, {"p1", 6}})
	require.NoError(t, err)
	require.Equal(t, 2, tree.Len())
}

func TestVerify_OneBitMutationRejects(t *testing.T) {
	tree, err := NewTree([]Entry{{"p1", 11}, {"p2", 22}, {"p3", 33}, {"p4", 44}, {"p5", 55}})
	require.NoError(t, err)
	root := tree.Root()

	proof, err := tree.Proof("p3", 33)
	require.NoError(t, err)
	require.True(t, Verify(root, "p3", 33, proof))

	// Flip one bit of the root.
	mutRoot := root
	mutRoot[0] ^= 0x01
	require.False(t, Verify(mutRoot, "p3", 33, proof))

	// Flip one bit of each proof element in turn.
	for i := range proof {
		mut := append([]Hash(nil), proof...)
		mut[i][31] ^= 0x80
		require.False(t, Verify(root, "p3", 33, mut), "proof element %d", i)
	}

	// Flip one bit of the amount and of the identity.
	require.False(t, Verify(root, "p3", 33^1, proof))
	require.False(t, Verify(root, "p3\x01", 33, proof))

	// Truncated and extended proofs are rejected too.
	if len(proof) > 0 {
		require.False(t, Verify(root, "p3", 33, proof[:len(proof)-1]))
	}
	require.False(t, Verify(root, "p3", 33, append(append([]Hash(nil), proof...), Hash{})))
}

func TestTree_OddLayerPromotion(t *testing.T) {
	// Seven leaves exercise promotion at every level.
	entries := make([]Entry, 7)
	for i := range entries {
		entries[i] = Entry{Identity: string(rune('a' + i)), Amount: uint64(i + 1)}
	}
	tree, err := NewTree(entries)
	require.NoError(t, err)
	for _, e := range entries {
		proof, err := tree.Proof(e.Identity, e.Amount)
		require.NoError(t, err)
		require.True(t, Verify(tree.Root(), e.Identity, e.Amount, proof), "leaf %s", e.Identity)
	}
}

func TestProofFromBytes(t *testing.T) {
	h1 := Leaf("x", 1)
	h2 := Leaf("y", 2)
	proof, err := ProofFromBytes([][]byte{h1.Bytes(), h2.Bytes()})
	require.NoError(t, err)
	require.Equal(t, []Hash{h1, h2}, proof)

	_, err = ProofFromBytes([][]byte{h1.Bytes(), []byte("short")})
	require.ErrorContains(t, err, "proof element 1")
}

func TestHashFromHex(t *testing.T) {
	h := Leaf("alice", 1)

	got, err := HashFromHex(h.String())
	require.NoError(t, err)
	require.Equal(t, h, got)

	got, err = HashFromHex("0x" + h.String())
	require.NoError(t, err)
	require.Equal(t, h, got)

	_, err = HashFromHex("abcd")
	require.Error(t, err)
	_, err = HashFromHex("zz")
	require.Error(t, err)
}

func FuzzVerify_OnlyCommittedPairsAccepted(f *testing.F) {
	tree, err := NewTree([]Entry{{"p1", 10}, {"p2", 20}, {"p3", 30}})
	if err != nil {
		f.Fatalf("build tree: %v", err)
	}
	root := tree.Root()
	p1Proof, err := tree.Proof("p1", 10)
	if err != nil {
		f.Fatalf("proof: %v", err)
	}

	f.Add("p1", uint64(10), []byte{})
	f.Add("p2", uint64(20), []byte{0xff})
	f.Add("p9", uint64(10), []byte{})

	f.Fuzz(func(t *testing.T, identity string, amount uint64, noise []byte) {
		proof := append([]Hash(nil), p1Proof...)
		for i, b := range noise {
			if len(proof) == 0 {
				break
			}
			proof[i%len(proof)][b%HashSize] ^= b | 1
		}
		if Verify(root, identity, amount, proof) {
			// Acceptance is only legitimate for the exact committed pair
			// with the unmutated proof.
			if identity != "p1" || amount != 10 {
				t.Fatalf("verifier accepted uncommitted pair (%q, %d)", identity, amount)
			}
			for i := range proof {
				if proof[i] != p1Proof[i] {
					t.Fatalf("verifier accepted mutated proof")
				}
			}
		}
	})
}
