// Package merkle implements the commitment scheme used for prize
// distribution: a binary Merkle tree over (identity, amount) leaves with
// commutative (sorted-pair) Keccak-256 hashing.
//
// Leaves are double-hashed: leaf = H(H(identity || amount_be64)). A leaf is
// therefore always the hash of a single 32-byte value, while an internal node
// is always the hash of a 64-byte concatenation, so a forged proof cannot
// present an internal node pre-image as a leaf.
//
// Pair hashing sorts the two children before concatenation,
// H(min(a,b) || max(a,b)), which makes the left/right position of each proof
// element irrelevant to the verifier.
package merkle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashSize is the byte length of a tree node.
const HashSize = 32

// Hash is a Keccak-256 digest: one node of the commitment tree.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Bytes returns the hash as a fresh byte slice.
func (h Hash) Bytes() []byte { return append([]byte(nil), h[:]...) }

// IsZero reports whether the hash is all zero bytes. The zero hash is never a
// valid published root.
func (h Hash) IsZero() bool { return h == Hash{} }

// HashFromBytes converts a 32-byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length: got %d want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded 32-byte hash, with or without 0x prefix.
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex: %w", err)
	}
	return HashFromBytes(b)
}

// keccak256 computes the Keccak-256 hash of the concatenated inputs.
func keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var out Hash
	d.Sum(out[:0])
	return out
}

// Leaf computes the double-hashed leaf for an (identity, amount) pair.
// The pre-image is the raw identity bytes followed by the amount as a
// big-endian uint64.
func Leaf(identity string, amount uint64) Hash {
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	inner := keccak256([]byte(identity), amt[:])
	return keccak256(inner[:])
}

// hashPair combines two sibling nodes into their parent, sorting the pair so
// that H(a,b) == H(b,a).
func hashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return keccak256(a[:], b[:])
}

// Verify folds proof over the leaf for (identity, amount) and reports whether
// the result equals root. It is a pure function: no state, no side effects.
// An empty proof is valid exactly when the leaf itself is the root
// (single-leaf tree).
func Verify(root Hash, identity string, amount uint64, proof []Hash) bool {
	node := Leaf(identity, amount)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

// ProofFromBytes converts a slice of raw 32-byte nodes (the wire form of a
// proof) into a []Hash, rejecting any element of the wrong length.
func ProofFromBytes(raw [][]byte) ([]Hash, error) {
	proof := make([]Hash, len(raw))
	for i, b := range raw {
		h, err := HashFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("proof element %d: %w", i, err)
		}
		proof[i] = h
	}
	return proof, nil
}
