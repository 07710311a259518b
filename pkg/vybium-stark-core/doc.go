// Package vybiumstarkcore provides the arithmetization and commitment
// core of a STARK proof engine, instantiated for a brainfuck machine.
//
// The prover compiles a program, simulates it to record an algebraic
// execution trace, and commits to the trace in phases: the base columns
// first, then challenge-derived extension columns carrying permutation
// and evaluation arguments between tables, then a composition polynomial
// folding every transition, boundary, and terminal constraint into one
// codeword. Query openings against the three commitments, together with
// an out-of-domain consistency check, make up the proof.
//
// # Quick Start
//
// Proving a program execution:
//
//	prover := vybiumstarkcore.NewProver(nil)
//	proof, claim, err := prover.Prove("+++.", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Verifying the proof against the claim:
//
//	verifier := vybiumstarkcore.NewVerifier()
//	if err := verifier.Verify(proof, claim); err != nil {
//		log.Fatal(err)
//	}
//
// A verification failure is reported as an *EngineError with code
// ErrProofRejected; any other code indicates a malformed input rather
// than a falsified claim.
//
// # Transported proofs
//
// Proofs serialize to a compact versioned binary format:
//
//	data, err := proof.MarshalBinary()
//	...
//	var restored vybiumstarkcore.Proof
//	err = restored.UnmarshalBinary(data)
//
// The claim travels separately: a proof only verifies against the exact
// program, input, and output it was produced for.
package vybiumstarkcore
