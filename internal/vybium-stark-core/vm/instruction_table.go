package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
)

// Instruction table columns. The rows are the program's cells plus one
// row per executed cycle, sorted by address; within an address group the
// program row comes first.
const (
	InstrIp = iota
	InstrCi
	InstrNi

	// InstrPermutation accumulates (alpha - compressed instruction) over
	// execution rows; its terminal matches the processor's instruction
	// permutation
	InstrPermutation

	// InstrProgramEvaluation Horner-folds the program rows under eta; its
	// terminal is recomputable from the public program
	InstrProgramEvaluation
)

const (
	instructionTableName      = "instruction"
	instructionBaseWidth      = 3
	instructionExtensionWidth = 2
)

// InstructionTable proves that the processor fetched instructions from
// the claimed program
type InstructionTable struct {
	baseTable
}

// NewInstructionTable wraps the simulator's address-sorted instruction rows
func NewInstructionTable(rows [][]field.Element) *InstructionTable {
	return &InstructionTable{
		baseTable: newBaseTable(instructionTableName, instructionBaseWidth, instructionExtensionWidth, rows),
	}
}

// Extend computes the two running columns. A row repeating the previous
// address is an execution row and feeds the permutation; a row opening a
// new address is a program row and feeds the program evaluation. Rows
// with a zero instruction (the halt fetch and padding) feed neither.
func (t *InstructionTable) Extend(challenges []field.Element, initials []field.Element) error {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return err
	}
	if len(initials) != instructionExtensionWidth {
		return fmt.Errorf("instruction table: got %d initials, need %d", len(initials), instructionExtensionWidth)
	}

	height := t.Height()
	ip := t.base.Column(InstrIp)
	ci := t.base.Column(InstrCi)
	ni := t.base.Column(InstrNi)

	perm := make([]field.Element, height)
	progEval := make([]field.Element, height)

	permAcc := initials[0]
	evalAcc := initials[1]
	for i := 0; i < height; i++ {
		combo := ch.CompressInstruction(ip[i], ci[i], ni[i])
		if i == 0 {
			evalAcc = evalAcc.Mul(ch.Eta()).Add(combo)
		} else if !ci[i].IsZero() {
			switch {
			case ip[i].Equal(ip[i-1]):
				permAcc = permAcc.Mul(ch.Alpha().Sub(combo))
			case ip[i].Equal(ip[i-1].Add(field.One)):
				evalAcc = evalAcc.Mul(ch.Eta()).Add(combo)
			}
		}
		perm[i] = permAcc
		progEval[i] = evalAcc
	}

	t.setExtension([][]field.Element{perm, progEval})
	return nil
}

// Constraints returns the instruction table's constraint system
func (t *InstructionTable) Constraints(challenges, terminals []field.Element) (*protocols.ConstraintGroup, error) {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return nil, err
	}
	if len(terminals) != NumTerminals {
		return nil, fmt.Errorf("instruction table: got %d terminals, need %d", len(terminals), NumTerminals)
	}
	return instructionConstraints(ch, terminals, t.numPaddedRows), nil
}

func instructionConstraints(ch *Challenges, terminals []field.Element, numPaddedRows int) *protocols.ConstraintGroup {
	group := &protocols.ConstraintGroup{TableName: instructionTableName}

	group.BaseBoundary = []protocols.Constraint{
		{
			Name:   "addresses start at zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[InstrIp]
			},
		},
	}

	group.BaseTransition = []protocols.TransitionConstraint{
		{
			Name:   "addresses stay or increment",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				diff := next[InstrIp].Sub(cur[InstrIp])
				return next[InstrCi].Mul(diff).Mul(diff.Sub(field.One))
			},
		},
		{
			Name:   "instruction agrees within an address",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				newAddress := next[InstrIp].Sub(cur[InstrIp]).Sub(field.One)
				return next[InstrCi].Mul(newAddress).Mul(next[InstrCi].Sub(cur[InstrCi]))
			},
		},
		{
			Name:   "next instruction agrees within an address",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				newAddress := next[InstrIp].Sub(cur[InstrIp]).Sub(field.One)
				return next[InstrCi].Mul(newAddress).Mul(next[InstrNi].Sub(cur[InstrNi]))
			},
		},
	}

	group.ExtensionBoundary = []protocols.Constraint{
		{
			Name:   "instruction permutation starts neutral",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[InstrPermutation].Sub(field.One)
			},
		},
		{
			Name:   "program evaluation opens with the first cell",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				combo := ch.CompressInstruction(row[InstrIp], row[InstrCi], row[InstrNi])
				return row[InstrProgramEvaluation].Sub(combo)
			},
		},
	}

	group.ExtensionTransition = []protocols.TransitionConstraint{
		{
			Name:   "instruction permutation absorbs execution rows",
			Degree: 4,
			Evaluator: func(cur, next []field.Element) field.Element {
				combo := ch.CompressInstruction(next[InstrIp], next[InstrCi], next[InstrNi])
				step := cur[InstrPermutation].Mul(ch.Alpha().Sub(combo))
				diff := next[InstrIp].Sub(cur[InstrIp])
				absorbed := diff.Sub(field.One).Mul(next[InstrPermutation].Sub(step))
				frozen := diff.Mul(next[InstrPermutation].Sub(cur[InstrPermutation]))
				return next[InstrCi].Mul(absorbed.Add(frozen))
			},
		},
		{
			Name:   "program evaluation absorbs program rows",
			Degree: 4,
			Evaluator: func(cur, next []field.Element) field.Element {
				combo := ch.CompressInstruction(next[InstrIp], next[InstrCi], next[InstrNi])
				step := cur[InstrProgramEvaluation].Mul(ch.Eta()).Add(combo)
				diff := next[InstrIp].Sub(cur[InstrIp])
				absorbed := diff.Mul(next[InstrProgramEvaluation].Sub(step))
				frozen := diff.Sub(field.One).Mul(next[InstrProgramEvaluation].Sub(cur[InstrProgramEvaluation]))
				return next[InstrCi].Mul(absorbed.Add(frozen))
			},
		},
	}

	// Both running columns freeze across halt and padding rows, so the
	// terminals need no padding compensation
	group.ExtensionTerminal = []protocols.Constraint{
		{
			Name:   "instruction permutation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[InstrPermutation].Sub(terminals[TerminalInstructionPermutation])
			},
		},
		{
			Name:   "program evaluation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[InstrProgramEvaluation].Sub(terminals[TerminalProgramEvaluation])
			},
		},
	}

	return group
}
