package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
)

// Memory table columns. The rows are the processor's memory accesses
// re-sorted by cell address, so cell histories become contiguous.
const (
	MemCycle = iota
	MemMp
	MemMv

	// MemPermutation accumulates (beta - compressed access) over every
	// row; its terminal matches the processor's memory permutation
	MemPermutation
)

const (
	memoryTableName      = "memory"
	memoryBaseWidth      = 3
	memoryExtensionWidth = 1
)

// MemoryTable proves that values survive while the pointer is elsewhere
type MemoryTable struct {
	baseTable
}

// NewMemoryTable wraps the simulator's address-sorted memory rows
func NewMemoryTable(rows [][]field.Element) *MemoryTable {
	return &MemoryTable{
		baseTable: newBaseTable(memoryTableName, memoryBaseWidth, memoryExtensionWidth, rows),
	}
}

// Extend computes the memory permutation column, accumulating on every
// row including padding
func (t *MemoryTable) Extend(challenges []field.Element, initials []field.Element) error {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return err
	}
	if len(initials) != memoryExtensionWidth {
		return fmt.Errorf("memory table: got %d initials, need %d", len(initials), memoryExtensionWidth)
	}

	height := t.Height()
	cycle := t.base.Column(MemCycle)
	mp := t.base.Column(MemMp)
	mv := t.base.Column(MemMv)

	symbols := make([]field.Element, height)
	for i := 0; i < height; i++ {
		symbols[i] = ch.CompressMemory(cycle[i], mp[i], mv[i])
	}

	t.setExtension([][]field.Element{RunningProduct(symbols, initials[0], ch.Beta())})
	return nil
}

// Constraints returns the memory table's constraint system
func (t *MemoryTable) Constraints(challenges, terminals []field.Element) (*protocols.ConstraintGroup, error) {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return nil, err
	}
	if len(terminals) != NumTerminals {
		return nil, fmt.Errorf("memory table: got %d terminals, need %d", len(terminals), NumTerminals)
	}
	return memoryConstraints(ch, terminals, t.numPaddedRows), nil
}

func memoryConstraints(ch *Challenges, terminals []field.Element, numPaddedRows int) *protocols.ConstraintGroup {
	group := &protocols.ConstraintGroup{TableName: memoryTableName}

	group.BaseBoundary = []protocols.Constraint{
		{
			Name:   "first access is cycle zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[MemCycle]
			},
		},
		{
			Name:   "first access is cell zero",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[MemMp]
			},
		},
		{
			Name:   "first access reads a cleared cell",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[MemMv]
			},
		},
	}

	group.BaseTransition = []protocols.TransitionConstraint{
		{
			Name:   "cell address stays or increments",
			Degree: 3,
			Evaluator: func(cur, next []field.Element) field.Element {
				diff := next[MemMp].Sub(cur[MemMp])
				return next[MemMp].Mul(diff).Mul(diff.Sub(field.One))
			},
		},
		{
			Name:   "a fresh cell starts cleared",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				return next[MemMp].Sub(cur[MemMp]).Mul(next[MemMv])
			},
		},
		{
			Name:   "values survive while the pointer is away",
			Degree: 4,
			Evaluator: func(cur, next []field.Element) field.Element {
				// Within a cell's history, a cycle gap means the pointer
				// was elsewhere, so the value cannot have changed. Rows
				// with next cycle zero are padding.
				sameCell := next[MemMp].Sub(cur[MemMp]).Sub(field.One)
				gap := next[MemCycle].Sub(cur[MemCycle]).Sub(field.One)
				unchanged := next[MemMv].Sub(cur[MemMv])
				return next[MemCycle].Mul(sameCell).Mul(gap).Mul(unchanged)
			},
		},
	}

	group.ExtensionBoundary = []protocols.Constraint{
		{
			Name:   "memory permutation opens with the first access",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				combo := ch.CompressMemory(row[MemCycle], row[MemMp], row[MemMv])
				return row[MemPermutation].Sub(ch.Beta().Sub(combo))
			},
		},
	}

	group.ExtensionTransition = []protocols.TransitionConstraint{
		{
			Name:   "memory permutation absorbs every access",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				combo := ch.CompressMemory(next[MemCycle], next[MemMp], next[MemMv])
				step := cur[MemPermutation].Mul(ch.Beta().Sub(combo))
				return next[MemPermutation].Sub(step)
			},
		},
	}

	// Padding rows multiply the accumulator by beta
	offset := ch.Beta().ModPow(uint64(numPaddedRows))
	group.ExtensionTerminal = []protocols.Constraint{
		{
			Name:   "memory permutation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				expected := terminals[TerminalMemoryPermutation].Mul(offset)
				return row[MemPermutation].Sub(expected)
			},
		},
	}

	return group
}
