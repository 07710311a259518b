package vybiumstarkcore

import (
	"encoding/binary"

	"github.com/gtank/merlin"
)

// claimSeed binds the Fiat-Shamir transcript to the claim and the public
// metadata. Prover and verifier derive the seed independently, so a proof
// only verifies against the claim it was produced for.
func claimSeed(claim *Claim, meta []byte) []byte {
	t := merlin.NewTranscript("vybium-stark-core/claim")
	t.AppendMessage([]byte("program"), elementBytes(claim.Program))
	t.AppendMessage([]byte("input"), claim.Input)
	t.AppendMessage([]byte("output"), claim.Output)
	t.AppendMessage([]byte("meta"), meta)
	return t.ExtractBytes([]byte("seed"), 32)
}

func elementBytes(elements []Element) []byte {
	buf := make([]byte, 8*len(elements))
	for i, e := range elements {
		binary.LittleEndian.PutUint64(buf[8*i:], e.Value())
	}
	return buf
}

// flattenOutOfDomain serializes the out-of-domain values in the order
// both sides absorb them into the transcript
func flattenOutOfDomain(rows, nextRows [][]Element, composition Element) []Element {
	var flat []Element
	for _, row := range rows {
		flat = append(flat, row...)
	}
	for _, row := range nextRows {
		flat = append(flat, row...)
	}
	return append(flat, composition)
}
