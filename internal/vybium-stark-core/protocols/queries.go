package protocols

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
)

// Queries opens every committed matrix at the transcript-sampled
// positions. Each opening is a full row of the joined codeword matrix
// plus its Merkle authentication path, so the verifier can check the
// opened values against the phase roots.
type Queries struct {
	Positions []int

	BaseRows        [][]field.Element
	ExtensionRows   [][]field.Element
	CompositionRows [][]field.Element

	BaseProofs        []*core.MerkleProof
	ExtensionProofs   []*core.MerkleProof
	CompositionProofs []*core.MerkleProof
}

func newQueries(positions []int, base, ext, composition *core.Matrix,
	baseTree, extTree, compositionTree *core.MerkleTree) (*Queries, error) {

	q := &Queries{
		Positions:         positions,
		BaseRows:          make([][]field.Element, len(positions)),
		CompositionRows:   make([][]field.Element, len(positions)),
		BaseProofs:        make([]*core.MerkleProof, len(positions)),
		CompositionProofs: make([]*core.MerkleProof, len(positions)),
	}
	if ext != nil {
		q.ExtensionRows = make([][]field.Element, len(positions))
		q.ExtensionProofs = make([]*core.MerkleProof, len(positions))
	}

	for i, pos := range positions {
		row, err := base.GetRow(pos)
		if err != nil {
			return nil, fmt.Errorf("opening base row: %w", err)
		}
		proof, err := baseTree.Prove(pos)
		if err != nil {
			return nil, fmt.Errorf("proving base row %d: %w", pos, err)
		}
		q.BaseRows[i] = row
		q.BaseProofs[i] = proof

		if ext != nil {
			row, err = ext.GetRow(pos)
			if err != nil {
				return nil, fmt.Errorf("opening extension row: %w", err)
			}
			proof, err = extTree.Prove(pos)
			if err != nil {
				return nil, fmt.Errorf("proving extension row %d: %w", pos, err)
			}
			q.ExtensionRows[i] = row
			q.ExtensionProofs[i] = proof
		}

		row, err = composition.GetRow(pos)
		if err != nil {
			return nil, fmt.Errorf("opening composition row: %w", err)
		}
		proof, err = compositionTree.Prove(pos)
		if err != nil {
			return nil, fmt.Errorf("proving composition row %d: %w", pos, err)
		}
		q.CompositionRows[i] = row
		q.CompositionProofs[i] = proof
	}
	return q, nil
}

// Verify checks every opened row against the phase roots. A failure means
// the proof is rejected, not that the verifier malfunctioned.
func (q *Queries) Verify(baseRoot, extensionRoot, compositionRoot hash.Digest, hasExtension bool) error {
	if len(q.BaseRows) != len(q.Positions) ||
		len(q.CompositionRows) != len(q.Positions) ||
		(hasExtension && len(q.ExtensionRows) != len(q.Positions)) {
		return fmt.Errorf("query bundle is missing openings for some positions")
	}

	for i, pos := range q.Positions {
		if err := verifyOpening(baseRoot, q.BaseRows[i], q.BaseProofs[i], pos); err != nil {
			return fmt.Errorf("base opening at position %d: %w", pos, err)
		}
		if hasExtension {
			if err := verifyOpening(extensionRoot, q.ExtensionRows[i], q.ExtensionProofs[i], pos); err != nil {
				return fmt.Errorf("extension opening at position %d: %w", pos, err)
			}
		}
		if err := verifyOpening(compositionRoot, q.CompositionRows[i], q.CompositionProofs[i], pos); err != nil {
			return fmt.Errorf("composition opening at position %d: %w", pos, err)
		}
	}
	return nil
}

func verifyOpening(root hash.Digest, row []field.Element, proof *core.MerkleProof, pos int) error {
	if proof == nil {
		return fmt.Errorf("missing authentication path")
	}
	if proof.LeafIndex != pos {
		return fmt.Errorf("authentication path is for leaf %d", proof.LeafIndex)
	}
	leaf := hash.HashVarlen(row)
	if !core.VerifyMerkleProof(root, leaf, proof) {
		return fmt.Errorf("authentication path does not match root")
	}
	return nil
}
