// Package vm contains the brainfuck machine and its arithmetization: the
// compiler, the simulator, and the component tables whose constraint
// systems tie the recorded execution together.
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// NumChallenges is the number of transcript challenges the table set
// consumes: six column-compression weights and five argument challenges.
const NumChallenges = 11

// Positions of the named challenges in the challenge vector
const (
	// ChallengeA, B, C compress (ip, ci, ni) triples
	ChallengeA = iota
	ChallengeB
	ChallengeC

	// ChallengeD, E, F compress (cycle, mp, mv) triples
	ChallengeD
	ChallengeE
	ChallengeF

	// ChallengeAlpha drives the processor/instruction permutation argument
	ChallengeAlpha

	// ChallengeBeta drives the processor/memory permutation argument
	ChallengeBeta

	// ChallengeGamma drives the input evaluation argument
	ChallengeGamma

	// ChallengeDelta drives the output evaluation argument
	ChallengeDelta

	// ChallengeEta drives the program evaluation argument
	ChallengeEta
)

// NumTerminals is the number of running-argument terminal values shared
// between tables and with the claim.
const NumTerminals = 5

// Positions of the named terminals in the terminal vector
const (
	TerminalInstructionPermutation = iota
	TerminalMemoryPermutation
	TerminalInputEvaluation
	TerminalOutputEvaluation
	TerminalProgramEvaluation
)

// Challenges gives named access to the transcript challenge vector
type Challenges struct {
	elements []field.Element
}

// NewChallenges wraps a challenge vector of length NumChallenges
func NewChallenges(elements []field.Element) (*Challenges, error) {
	if len(elements) != NumChallenges {
		return nil, fmt.Errorf("got %d challenges, need %d", len(elements), NumChallenges)
	}
	return &Challenges{elements: elements}, nil
}

func (c *Challenges) A() field.Element     { return c.elements[ChallengeA] }
func (c *Challenges) B() field.Element     { return c.elements[ChallengeB] }
func (c *Challenges) C() field.Element     { return c.elements[ChallengeC] }
func (c *Challenges) D() field.Element     { return c.elements[ChallengeD] }
func (c *Challenges) E() field.Element     { return c.elements[ChallengeE] }
func (c *Challenges) F() field.Element     { return c.elements[ChallengeF] }
func (c *Challenges) Alpha() field.Element { return c.elements[ChallengeAlpha] }
func (c *Challenges) Beta() field.Element  { return c.elements[ChallengeBeta] }
func (c *Challenges) Gamma() field.Element { return c.elements[ChallengeGamma] }
func (c *Challenges) Delta() field.Element { return c.elements[ChallengeDelta] }
func (c *Challenges) Eta() field.Element   { return c.elements[ChallengeEta] }

// CompressInstruction folds an (ip, ci, ni) triple into one element
func (c *Challenges) CompressInstruction(ip, ci, ni field.Element) field.Element {
	return c.A().Mul(ip).Add(c.B().Mul(ci)).Add(c.C().Mul(ni))
}

// CompressMemory folds a (cycle, mp, mv) triple into one element
func (c *Challenges) CompressMemory(cycle, mp, mv field.Element) field.Element {
	return c.D().Mul(cycle).Add(c.E().Mul(mp)).Add(c.F().Mul(mv))
}
