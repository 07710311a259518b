package vybiumstarkcore

import (
	"bytes"
	"crypto/rand"

	log "github.com/sirupsen/logrus"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/vm"
)

// Prover produces execution proofs for brainfuck programs
type Prover struct {
	options *ProofOptions
	meta    []byte
}

// NewProver creates a prover with the given options, or the defaults
// when options is nil
func NewProver(options *ProofOptions) *Prover {
	if options == nil {
		options = DefaultProofOptions()
	}
	return &Prover{options: options}
}

// SetMeta attaches public metadata that is bound into every proof
func (p *Prover) SetMeta(meta []byte) {
	p.meta = meta
}

// Prove compiles the program, runs it on the input, and proves the
// execution. The returned claim carries the program, the input, and the
// produced output.
func (p *Prover) Prove(source string, input []byte) (*Proof, *Claim, error) {
	program, err := vm.Compile(source)
	if err != nil {
		return nil, nil, &EngineError{Code: ErrCompilation, Message: "compiling program", Cause: err}
	}

	result, err := vm.Simulate(program, bytes.NewReader(input))
	if err != nil {
		return nil, nil, &EngineError{Code: ErrExecution, Message: "running program", Cause: err}
	}

	claim := &Claim{Program: program, Input: input, Output: result.Output}
	proof, err := p.ProveExecution(result, claim)
	if err != nil {
		return nil, nil, err
	}
	return proof, claim, nil
}

// ProveExecution proves an already simulated execution against its claim
func (p *Prover) ProveExecution(result *vm.SimulationResult, claim *Claim) (*Proof, error) {
	cfg := p.options.config()
	if err := cfg.Validate(); err != nil {
		return nil, &EngineError{Code: ErrInvalidConfig, Message: "invalid proof options", Cause: err}
	}

	randomizerSeed := make([]byte, 32)
	if _, err := rand.Read(randomizerSeed); err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "drawing randomizer seed", Cause: err}
	}

	tables := vm.NewTables(result)
	trace, err := protocols.NewTrace(tables, cfg, p.meta, randomizerSeed)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "assembling trace", Cause: err}
	}

	ts := protocols.NewTranscript(claimSeed(claim, p.meta))

	baseRoot, err := trace.CommitBase(ts)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "committing base trace", Cause: err}
	}

	challenges := trace.SampleChallenges(ts, vm.NumChallenges)
	ch, err := vm.NewChallenges(challenges)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "deriving challenges", Cause: err}
	}

	terminals, err := vm.ComputeTerminals(result, ch)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "computing terminals", Cause: err}
	}

	extensionRoot, hasExtension, err := trace.ExtendAndCommit(ts, vm.DefaultInitials(), terminals)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "committing extension trace", Cause: err}
	}

	groups := make([]protocols.ConstraintGroup, len(tables))
	for i, table := range tables {
		group, err := table.Constraints(challenges, terminals)
		if err != nil {
			return nil, &EngineError{Code: ErrProofGeneration, Message: "building constraints", Cause: err}
		}
		groups[i] = *group
	}

	compositionRoot, err := trace.CommitComposition(ts, groups)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "committing composition", Cause: err}
	}

	z := ts.SampleElements(1)[0]
	ood, err := trace.EvaluateOutOfDomain(z)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "evaluating out of domain", Cause: err}
	}
	ts.AbsorbElements(flattenOutOfDomain(ood.TableRows, ood.TableNextRows, ood.CompositionValue))

	queries, err := trace.BuildQueries(ts)
	if err != nil {
		return nil, &EngineError{Code: ErrProofGeneration, Message: "opening queries", Cause: err}
	}

	records := make([]TableRecord, len(tables))
	for i, table := range tables {
		records[i] = TableRecord{Name: table.Name(), Len: table.Len()}
	}

	log.WithFields(log.Fields{
		"cycles":  len(result.ProcessorRows),
		"queries": len(queries.Positions),
	}).Info("proof generated")

	return &Proof{
		Options:             *p.options,
		Meta:                p.meta,
		TraceLen:            trace.Info().TraceLen,
		Tables:              records,
		BaseRoot:            baseRoot,
		ExtensionRoot:       extensionRoot,
		HasExtension:        hasExtension,
		CompositionRoot:     compositionRoot,
		Terminals:           terminals,
		OodRows:             ood.TableRows,
		OodNextRows:         ood.TableNextRows,
		OodCompositionValue: ood.CompositionValue,
		Queries:             queries,
	}, nil
}
