package vybiumstarkcore

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/vm"
)

// Verifier checks execution proofs against claims
type Verifier struct{}

// NewVerifier creates a verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify replays the prover's transcript from the claim and the proof,
// checks the out-of-domain composition identity, the query openings, and
// the terminal linkage to the claim. A nil return means the proof is
// accepted.
func (v *Verifier) Verify(proof *Proof, claim *Claim) error {
	if proof == nil || claim == nil {
		return &EngineError{Code: ErrInvalidInput, Message: "nil proof or claim"}
	}

	cfg := proof.Options.config()
	if err := cfg.Validate(); err != nil {
		return &EngineError{Code: ErrMalformedProof, Message: "invalid options in proof", Cause: err}
	}

	layout := vm.Layout()
	if len(proof.Tables) != len(layout) {
		return &EngineError{Code: ErrMalformedProof,
			Message: fmt.Sprintf("proof has %d tables, expected %d", len(proof.Tables), len(layout))}
	}
	if len(proof.Terminals) != vm.NumTerminals {
		return &EngineError{Code: ErrMalformedProof,
			Message: fmt.Sprintf("proof has %d terminals, expected %d", len(proof.Terminals), vm.NumTerminals)}
	}
	if len(proof.OodRows) != len(layout) || len(proof.OodNextRows) != len(layout) {
		return &EngineError{Code: ErrMalformedProof, Message: "out-of-domain rows do not cover every table"}
	}

	heights := make([]int, len(layout))
	paddedRows := make([]int, len(layout))
	numBase := cfg.NumRandomizerColumns
	numExt := 0
	maxHeight := 1
	for i, shape := range layout {
		record := proof.Tables[i]
		if record.Name != shape.Name {
			return &EngineError{Code: ErrMalformedProof,
				Message: fmt.Sprintf("table %d is %q, expected %q", i, record.Name, shape.Name)}
		}
		if record.Len < 0 {
			return &EngineError{Code: ErrMalformedProof, Message: "negative table length"}
		}
		heights[i] = utils.NextPowerOfTwo(record.Len)
		paddedRows[i] = heights[i] - record.Len
		if heights[i] > maxHeight {
			maxHeight = heights[i]
		}

		width := shape.BaseWidth + shape.ExtensionWidth
		if len(proof.OodRows[i]) != width || len(proof.OodNextRows[i]) != width {
			return &EngineError{Code: ErrMalformedProof,
				Message: fmt.Sprintf("out-of-domain row of table %q has wrong width", shape.Name)}
		}
		numBase += shape.BaseWidth
		numExt += shape.ExtensionWidth
	}
	if numExt > 0 && !proof.HasExtension {
		return &EngineError{Code: ErrMalformedProof, Message: "proof is missing the extension commitment"}
	}

	traceLen := maxHeight
	if traceLen < protocols.MinTraceLength {
		traceLen = protocols.MinTraceLength
	}
	if proof.TraceLen != traceLen {
		return rejected(fmt.Sprintf("trace length %d does not match the table set", proof.TraceLen), nil)
	}
	codewordLen := traceLen * cfg.ExpansionFactor

	// Replay the transcript
	ts := protocols.NewTranscript(claimSeed(claim, proof.Meta))
	ts.AbsorbElements([]field.Element{
		field.New(uint64(numBase)),
		field.New(uint64(numExt)),
		field.New(uint64(traceLen)),
	})
	ts.AbsorbBytes(proof.Meta)
	ts.AbsorbDigest(proof.BaseRoot)

	challenges := ts.SampleElements(vm.NumChallenges)

	if proof.HasExtension {
		ts.AbsorbDigest(proof.ExtensionRoot)
	}
	ts.AbsorbElements(proof.Terminals)

	groups, err := vm.ConstraintGroups(challenges, proof.Terminals, paddedRows)
	if err != nil {
		return &EngineError{Code: ErrMalformedProof, Message: "rebuilding constraints", Cause: err}
	}
	weights := ts.SampleElements(protocols.TotalConstraints(groups))
	ts.AbsorbDigest(proof.CompositionRoot)

	// Out-of-domain consistency: the committed composition value at z
	// must recombine from the claimed trace rows at z
	z := ts.SampleElements(1)[0]
	recombined, err := protocols.RecombineOutOfDomain(groups, heights, z, proof.OodRows, proof.OodNextRows, weights)
	if err != nil {
		return &EngineError{Code: ErrMalformedProof, Message: "recombining out-of-domain values", Cause: err}
	}
	if !recombined.Equal(proof.OodCompositionValue) {
		return rejected("out-of-domain composition check failed", nil)
	}
	ts.AbsorbElements(flattenOutOfDomain(proof.OodRows, proof.OodNextRows, proof.OodCompositionValue))

	// Query openings
	positions, err := ts.SampleIndices(codewordLen, cfg.NumQueries)
	if err != nil {
		return &EngineError{Code: ErrMalformedProof, Message: "sampling query positions", Cause: err}
	}
	if proof.Queries == nil || len(proof.Queries.Positions) != len(positions) {
		return &EngineError{Code: ErrMalformedProof, Message: "proof is missing query openings"}
	}
	for i, pos := range positions {
		if proof.Queries.Positions[i] != pos {
			return rejected("query positions do not match the transcript", nil)
		}
	}
	if err := proof.Queries.Verify(proof.BaseRoot, proof.ExtensionRoot, proof.CompositionRoot, proof.HasExtension); err != nil {
		return rejected("query opening check failed", err)
	}

	// Terminal linkage: the claimed terminals must match the public
	// program, input, and output under the transcript challenges
	ch, err := vm.NewChallenges(challenges)
	if err != nil {
		return &EngineError{Code: ErrMalformedProof, Message: "rebuilding challenges", Cause: err}
	}
	inputTerminal := vm.EvaluationTerminal(bytesToElements(claim.Input), field.Zero, ch.Gamma())
	if !proof.Terminals[vm.TerminalInputEvaluation].Equal(inputTerminal) {
		return rejected("input terminal does not match the claim", nil)
	}
	outputTerminal := vm.EvaluationTerminal(bytesToElements(claim.Output), field.Zero, ch.Delta())
	if !proof.Terminals[vm.TerminalOutputEvaluation].Equal(outputTerminal) {
		return rejected("output terminal does not match the claim", nil)
	}
	programTerminal := vm.ProgramEvaluationTerminal(claim.Program, ch)
	if !proof.Terminals[vm.TerminalProgramEvaluation].Equal(programTerminal) {
		return rejected("program terminal does not match the claim", nil)
	}

	return nil
}

func bytesToElements(data []byte) []field.Element {
	elements := make([]field.Element, len(data))
	for i, b := range data {
		elements[i] = field.New(uint64(b))
	}
	return elements
}
