package core

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// MerkleTree commits to the row hashes of a low-degree-extended codeword.
// The leaf count must be a power of 2 (codeword lengths always are), giving
// a fixed-height binary tree. Immutable once built.
type MerkleTree struct {
	levels [][]hash.Digest
}

// MerkleProof is the authentication path for one leaf index
type MerkleProof struct {
	// LeafIndex is the position the path opens
	LeafIndex int

	// Path holds the sibling digests from leaf level to just below the root
	Path []hash.Digest
}

// NewMerkleTree builds a tree over the given leaf digests
func NewMerkleTree(leaves []hash.Digest) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot create Merkle tree with no leaves")
	}
	if !utils.IsPowerOfTwo(len(leaves)) {
		return nil, fmt.Errorf("leaf count must be a power of 2, got %d", len(leaves))
	}

	level := make([]hash.Digest, len(leaves))
	copy(level, leaves)
	levels := [][]hash.Digest{level}

	for len(level) > 1 {
		next := make([]hash.Digest, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &MerkleTree{levels: levels}, nil
}

// Root returns the tree's root digest
func (mt *MerkleTree) Root() hash.Digest {
	return mt.levels[len(mt.levels)-1][0]
}

// NumLeaves returns the number of committed leaves
func (mt *MerkleTree) NumLeaves() int {
	return len(mt.levels[0])
}

// Prove returns the authentication path for the leaf at index
func (mt *MerkleTree) Prove(index int) (*MerkleProof, error) {
	if index < 0 || index >= mt.NumLeaves() {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", index, mt.NumLeaves())
	}

	path := make([]hash.Digest, 0, len(mt.levels)-1)
	current := index
	for level := 0; level < len(mt.levels)-1; level++ {
		path = append(path, mt.levels[level][current^1])
		current /= 2
	}

	return &MerkleProof{LeafIndex: index, Path: path}, nil
}

// VerifyMerkleProof recomputes the root from a leaf digest and its
// authentication path and compares it against the committed root
func VerifyMerkleProof(root hash.Digest, leaf hash.Digest, proof *MerkleProof) bool {
	current := leaf
	index := proof.LeafIndex
	for _, sibling := range proof.Path {
		if index%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		index /= 2
	}
	return digestsEqual(current, root)
}

// hashPair combines two child digests into their parent digest with Tip5
func hashPair(left, right hash.Digest) hash.Digest {
	input := make([]field.Element, 0, 2*hash.DigestLen)
	input = append(input, left[:]...)
	input = append(input, right[:]...)
	return hash.HashVarlen(input)
}

func digestsEqual(a, b hash.Digest) bool {
	for i := 0; i < hash.DigestLen; i++ {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
