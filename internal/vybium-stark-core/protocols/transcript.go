package protocols

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// Transcript implements the Fiat-Shamir transform over a Tip5 digest
// chain. The prover absorbs every commitment before sampling, so each
// challenge is bound to everything sent so far; the verifier replays the
// same absorptions and recovers the same challenges.
type Transcript struct {
	state hash.Digest
}

// NewTranscript creates a transcript seeded with the given bytes. The
// seed binds the transcript to the claim being proven.
func NewTranscript(seed []byte) *Transcript {
	t := &Transcript{}
	t.AbsorbBytes(seed)
	return t
}

// AbsorbElements mixes field elements into the transcript state
func (t *Transcript) AbsorbElements(elements []field.Element) {
	input := make([]field.Element, 0, len(t.state)+len(elements))
	input = append(input, t.state[:]...)
	input = append(input, elements...)
	t.state = hash.HashVarlen(input)
}

// AbsorbDigest mixes a commitment digest into the transcript state
func (t *Transcript) AbsorbDigest(digest hash.Digest) {
	t.AbsorbElements(digest[:])
}

// AbsorbBytes hashes raw bytes with SHA3-256 and mixes the result into
// the transcript state as four field elements.
func (t *Transcript) AbsorbBytes(data []byte) {
	sum := sha3.Sum256(data)
	elements := make([]field.Element, 4)
	for i := 0; i < 4; i++ {
		chunk := binary.BigEndian.Uint64(sum[i*8 : (i+1)*8])
		elements[i] = field.New(chunk % field.P)
	}
	t.AbsorbElements(elements)
}

// SampleElements squeezes n field elements from the transcript. Each
// squeeze rehashes the state, so consecutive samples are independent.
func (t *Transcript) SampleElements(n int) []field.Element {
	out := make([]field.Element, 0, n)
	for len(out) < n {
		t.state = hash.HashVarlen(t.state[:])
		for _, e := range t.state {
			if len(out) == n {
				break
			}
			out = append(out, e)
		}
	}
	return out
}

// SampleIndices squeezes n indices below upperBound, which must be a
// power of two so that reduction introduces no modulo bias.
func (t *Transcript) SampleIndices(upperBound int, n int) ([]int, error) {
	if !utils.IsPowerOfTwo(upperBound) {
		return nil, fmt.Errorf("index upper bound %d is not a power of two", upperBound)
	}
	elements := t.SampleElements(n)
	indices := make([]int, n)
	for i, e := range elements {
		indices[i] = int(e.Value() & uint64(upperBound-1))
	}
	return indices, nil
}
