package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
)

// Processor table columns. Base columns record the machine registers per
// cycle; extension columns carry the running arguments linking the
// processor to the other tables.
const (
	ProcCycle = iota
	ProcIp
	ProcCi
	ProcNi
	ProcMp
	ProcMv
	ProcMvInverse

	// ProcInstructionPermutation accumulates (alpha - compressed
	// instruction) over executing rows
	ProcInstructionPermutation

	// ProcMemoryPermutation accumulates (beta - compressed memory
	// access) over every row
	ProcMemoryPermutation

	// ProcInputEvaluation Horner-folds the values read by ','
	ProcInputEvaluation

	// ProcOutputEvaluation Horner-folds the values written by '.'
	ProcOutputEvaluation
)

const (
	processorTableName      = "processor"
	processorBaseWidth      = 7
	processorExtensionWidth = 4
)

// ProcessorTable records the machine registers cycle by cycle
type ProcessorTable struct {
	baseTable
}

// NewProcessorTable wraps the simulator's processor rows
func NewProcessorTable(rows [][]field.Element) *ProcessorTable {
	return &ProcessorTable{
		baseTable: newBaseTable(processorTableName, processorBaseWidth, processorExtensionWidth, rows),
	}
}

// Extend computes the four running-argument columns. The instruction
// permutation and the two evaluations freeze on rows where the current
// instruction is zero, so they keep their value across halt and padding;
// the memory permutation accumulates on every row.
func (t *ProcessorTable) Extend(challenges []field.Element, initials []field.Element) error {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return err
	}
	if len(initials) != processorExtensionWidth {
		return fmt.Errorf("processor table: got %d initials, need %d", len(initials), processorExtensionWidth)
	}

	height := t.Height()
	cycle := t.base.Column(ProcCycle)
	ip := t.base.Column(ProcIp)
	ci := t.base.Column(ProcCi)
	ni := t.base.Column(ProcNi)
	mp := t.base.Column(ProcMp)
	mv := t.base.Column(ProcMv)

	instrPerm := make([]field.Element, height)
	memPerm := make([]field.Element, height)
	inputEval := make([]field.Element, height)
	outputEval := make([]field.Element, height)

	instrAcc := initials[0]
	memAcc := initials[1]
	for i := 0; i < height; i++ {
		if !ci[i].IsZero() {
			combo := ch.CompressInstruction(ip[i], ci[i], ni[i])
			instrAcc = instrAcc.Mul(ch.Alpha().Sub(combo))
		}
		instrPerm[i] = instrAcc

		combo := ch.CompressMemory(cycle[i], mp[i], mv[i])
		memAcc = memAcc.Mul(ch.Beta().Sub(combo))
		memPerm[i] = memAcc
	}

	inAcc := initials[2]
	outAcc := initials[3]
	inputEval[0] = inAcc
	outputEval[0] = outAcc
	for i := 0; i+1 < height; i++ {
		if ci[i].Value() == OpInput {
			inAcc = inAcc.Mul(ch.Gamma()).Add(mv[i+1])
		}
		if ci[i].Value() == OpOutput {
			outAcc = outAcc.Mul(ch.Delta()).Add(mv[i])
		}
		inputEval[i+1] = inAcc
		outputEval[i+1] = outAcc
	}

	t.setExtension([][]field.Element{instrPerm, memPerm, inputEval, outputEval})
	return nil
}

// Constraints returns the processor's constraint system
func (t *ProcessorTable) Constraints(challenges, terminals []field.Element) (*protocols.ConstraintGroup, error) {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return nil, err
	}
	if len(terminals) != NumTerminals {
		return nil, fmt.Errorf("processor table: got %d terminals, need %d", len(terminals), NumTerminals)
	}
	return processorConstraints(ch, terminals, t.numPaddedRows), nil
}

func processorConstraints(ch *Challenges, terminals []field.Element, numPaddedRows int) *protocols.ConstraintGroup {
	group := &protocols.ConstraintGroup{TableName: processorTableName}

	group.BaseBoundary = []protocols.Constraint{
		{
			Name:   "cycle counter starts at zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcCycle]
			},
		},
		{
			Name:   "instruction pointer starts at zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcIp]
			},
		},
		{
			Name:   "memory pointer starts at zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcMp]
			},
		},
		{
			Name:   "memory starts cleared",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcMv]
			},
		},
	}

	group.BaseTransition = []protocols.TransitionConstraint{
		{
			Name:   "cycle counter increments while running",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				return cur[ProcCi].Mul(next[ProcCycle].Sub(cur[ProcCycle]).Sub(field.One))
			},
		},
		{
			Name:   "memory value inverse annihilates the value",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				product := cur[ProcMv].Mul(cur[ProcMvInverse])
				return cur[ProcMv].Mul(product.Sub(field.One))
			},
		},
		{
			Name:   "memory value annihilates the inverse",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				product := cur[ProcMv].Mul(cur[ProcMvInverse])
				return cur[ProcMvInverse].Mul(product.Sub(field.One))
			},
		},
		{
			Name:      "instruction pointer follows the executed instruction",
			Degree:    11,
			Evaluator: processorRegisterTransition(ipRelation),
		},
		{
			Name:      "memory pointer follows the executed instruction",
			Degree:    9,
			Evaluator: processorRegisterTransition(mpRelation),
		},
		{
			Name:      "memory value follows the executed instruction",
			Degree:    9,
			Evaluator: processorRegisterTransition(mvRelation),
		},
	}

	group.ExtensionBoundary = []protocols.Constraint{
		{
			Name:   "instruction permutation opens with the first instruction",
			Degree: 2,
			Evaluator: func(row []field.Element) field.Element {
				combo := ch.CompressInstruction(row[ProcIp], row[ProcCi], row[ProcNi])
				expected := ch.Alpha().Sub(combo)
				return row[ProcCi].Mul(row[ProcInstructionPermutation].Sub(expected))
			},
		},
		{
			Name:   "memory permutation opens with the first access",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				combo := ch.CompressMemory(row[ProcCycle], row[ProcMp], row[ProcMv])
				return row[ProcMemoryPermutation].Sub(ch.Beta().Sub(combo))
			},
		},
		{
			Name:   "input evaluation starts empty",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcInputEvaluation]
			},
		},
		{
			Name:   "output evaluation starts empty",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcOutputEvaluation]
			},
		},
	}

	group.ExtensionTransition = []protocols.TransitionConstraint{
		{
			Name:   "instruction permutation absorbs executing rows",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				combo := ch.CompressInstruction(next[ProcIp], next[ProcCi], next[ProcNi])
				step := cur[ProcInstructionPermutation].Mul(ch.Alpha().Sub(combo))
				return next[ProcCi].Mul(next[ProcInstructionPermutation].Sub(step))
			},
		},
		{
			Name:   "instruction permutation freezes after halt",
			Degree: 9,
			Evaluator: func(cur, next []field.Element) field.Element {
				diff := next[ProcInstructionPermutation].Sub(cur[ProcInstructionPermutation])
				return opcodeZerofier(next[ProcCi]).Mul(diff)
			},
		},
		{
			Name:   "memory permutation absorbs every access",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				combo := ch.CompressMemory(next[ProcCycle], next[ProcMp], next[ProcMv])
				step := cur[ProcMemoryPermutation].Mul(ch.Beta().Sub(combo))
				return next[ProcMemoryPermutation].Sub(step)
			},
		},
		{
			Name:   "input evaluation absorbs read values",
			Degree: 10,
			Evaluator: func(cur, next []field.Element) field.Element {
				step := cur[ProcInputEvaluation].Mul(ch.Gamma()).Add(next[ProcMv])
				active := next[ProcInputEvaluation].Sub(step)
				return instructionDeselector(OpInput, cur[ProcCi]).Mul(active)
			},
		},
		{
			Name:   "input evaluation freezes otherwise",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				frozen := next[ProcInputEvaluation].Sub(cur[ProcInputEvaluation])
				return cur[ProcCi].Sub(field.New(OpInput)).Mul(frozen)
			},
		},
		{
			Name:   "output evaluation absorbs written values",
			Degree: 10,
			Evaluator: func(cur, next []field.Element) field.Element {
				step := cur[ProcOutputEvaluation].Mul(ch.Delta()).Add(cur[ProcMv])
				active := next[ProcOutputEvaluation].Sub(step)
				return instructionDeselector(OpOutput, cur[ProcCi]).Mul(active)
			},
		},
		{
			Name:   "output evaluation freezes otherwise",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				frozen := next[ProcOutputEvaluation].Sub(cur[ProcOutputEvaluation])
				return cur[ProcCi].Sub(field.New(OpOutput)).Mul(frozen)
			},
		},
	}

	// The memory permutation keeps multiplying by beta across all-zero
	// padding rows, so its claimed terminal is compensated by beta to the
	// number of padded rows. The other three columns freeze on padding.
	memOffset := ch.Beta().ModPow(uint64(numPaddedRows))
	group.ExtensionTerminal = []protocols.Constraint{
		{
			Name:   "instruction permutation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcInstructionPermutation].Sub(terminals[TerminalInstructionPermutation])
			},
		},
		{
			Name:   "memory permutation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				expected := terminals[TerminalMemoryPermutation].Mul(memOffset)
				return row[ProcMemoryPermutation].Sub(expected)
			},
		},
		{
			Name:   "input evaluation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcInputEvaluation].Sub(terminals[TerminalInputEvaluation])
			},
		},
		{
			Name:   "output evaluation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[ProcOutputEvaluation].Sub(terminals[TerminalOutputEvaluation])
			},
		},
	}

	return group
}

// registerRelation gives one register's transition polynomial under one
// opcode
type registerRelation func(op uint64, cur, next []field.Element) field.Element

// processorRegisterTransition sums each opcode's relation weighted by its
// deselector. Exactly one deselector is nonzero on an executing row, so
// the sum enforces the relation of the instruction actually executed;
// on halt and padding rows every deselector vanishes.
func processorRegisterTransition(relation registerRelation) func(cur, next []field.Element) field.Element {
	return func(cur, next []field.Element) field.Element {
		sum := field.Zero
		for _, op := range opcodes {
			term := relation(op, cur, next)
			if term.IsZero() {
				continue
			}
			sum = sum.Add(instructionDeselector(op, cur[ProcCi]).Mul(term))
		}
		return sum
	}
}

func ipRelation(op uint64, cur, next []field.Element) field.Element {
	ipStep := func(n uint64) field.Element {
		return next[ProcIp].Sub(cur[ProcIp]).Sub(field.New(n))
	}
	switch op {
	case OpJumpZ:
		// jump to ni when mv is zero, step over the operand otherwise
		hit := cur[ProcMv].Mul(ipStep(2))
		isZero := field.One.Sub(cur[ProcMv].Mul(cur[ProcMvInverse]))
		miss := isZero.Mul(next[ProcIp].Sub(cur[ProcNi]))
		return hit.Add(miss)
	case OpJumpNZ:
		// jump to ni when mv is nonzero, step over the operand otherwise
		isZero := field.One.Sub(cur[ProcMv].Mul(cur[ProcMvInverse]))
		miss := isZero.Mul(ipStep(2))
		hit := cur[ProcMv].Mul(next[ProcIp].Sub(cur[ProcNi]))
		return hit.Add(miss)
	default:
		return ipStep(1)
	}
}

func mpRelation(op uint64, cur, next []field.Element) field.Element {
	diff := next[ProcMp].Sub(cur[ProcMp])
	switch op {
	case OpRight:
		return diff.Sub(field.One)
	case OpLeft:
		return diff.Add(field.One)
	default:
		return diff
	}
}

func mvRelation(op uint64, cur, next []field.Element) field.Element {
	diff := next[ProcMv].Sub(cur[ProcMv])
	switch op {
	case OpInc:
		return diff.Sub(field.One)
	case OpDec:
		return diff.Add(field.One)
	case OpOutput, OpJumpZ, OpJumpNZ:
		return diff
	default:
		// '>', '<' land on another cell and ',' overwrites the value, so
		// the next value is unconstrained here; the memory table links it
		return field.Zero
	}
}
