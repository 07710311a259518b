package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
)

// IO table columns. One base column of values crossing the machine
// boundary, one extension column folding them into an evaluation.
const (
	IoValue = iota

	// IoEvaluation Horner-folds the values under the table's challenge
	IoEvaluation
)

const (
	inputTableName  = "input"
	outputTableName = "output"

	ioBaseWidth      = 1
	ioExtensionWidth = 1
)

// ioTable is the shared shape of the input and output tables. The two
// differ only in which challenge and terminal they are keyed to.
type ioTable struct {
	baseTable
	challengeIdx int
	terminalIdx  int
}

func newIoTable(name string, challengeIdx, terminalIdx int, values []field.Element) ioTable {
	rows := make([][]field.Element, len(values))
	for i, v := range values {
		rows[i] = []field.Element{v}
	}
	return ioTable{
		baseTable:    newBaseTable(name, ioBaseWidth, ioExtensionWidth, rows),
		challengeIdx: challengeIdx,
		terminalIdx:  terminalIdx,
	}
}

// Extend computes the evaluation column. Padding rows hold zero values,
// so each one multiplies the accumulator by the challenge; the terminal
// constraint compensates for that.
func (t *ioTable) Extend(challenges []field.Element, initials []field.Element) error {
	if len(challenges) != NumChallenges {
		return fmt.Errorf("table %s: got %d challenges, need %d", t.name, len(challenges), NumChallenges)
	}
	if len(initials) != ioExtensionWidth {
		return fmt.Errorf("table %s: got %d initials, need %d", t.name, len(initials), ioExtensionWidth)
	}
	column := RunningEvaluation(t.base.Column(IoValue), initials[0], challenges[t.challengeIdx])
	t.setExtension([][]field.Element{column})
	return nil
}

// Constraints returns the io table's constraint system
func (t *ioTable) Constraints(challenges, terminals []field.Element) (*protocols.ConstraintGroup, error) {
	if len(challenges) != NumChallenges {
		return nil, fmt.Errorf("table %s: got %d challenges, need %d", t.name, len(challenges), NumChallenges)
	}
	if len(terminals) != NumTerminals {
		return nil, fmt.Errorf("table %s: got %d terminals, need %d", t.name, len(terminals), NumTerminals)
	}
	return ioConstraints(t.name, challenges[t.challengeIdx], terminals[t.terminalIdx], t.numPaddedRows), nil
}

func ioConstraints(name string, challenge, terminal field.Element, numPaddedRows int) *protocols.ConstraintGroup {
	group := &protocols.ConstraintGroup{TableName: name}

	group.ExtensionBoundary = []protocols.Constraint{
		{
			Name:   "evaluation opens with the first value",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[IoEvaluation].Sub(row[IoValue])
			},
		},
	}

	group.ExtensionTransition = []protocols.TransitionConstraint{
		{
			Name:   "evaluation absorbs every value",
			Degree: 2,
			Evaluator: func(cur, next []field.Element) field.Element {
				step := cur[IoEvaluation].Mul(challenge).Add(next[IoValue])
				return next[IoEvaluation].Sub(step)
			},
		},
	}

	// The terminal is computed over the real values only; every padding
	// row multiplied the accumulator by the challenge once more
	offset := challenge.ModPow(uint64(numPaddedRows))
	group.ExtensionTerminal = []protocols.Constraint{
		{
			Name:   "evaluation matches the claimed terminal",
			Degree: 1,
			Evaluator: func(row []field.Element) field.Element {
				return row[IoEvaluation].Sub(terminal.Mul(offset))
			},
		},
	}

	return group
}

// InputTable records the values read by ',' in read order
type InputTable struct {
	ioTable
}

// NewInputTable wraps the simulator's input record
func NewInputTable(values []field.Element) *InputTable {
	return &InputTable{ioTable: newIoTable(inputTableName, ChallengeGamma, TerminalInputEvaluation, values)}
}

// OutputTable records the values written by '.' in write order
type OutputTable struct {
	ioTable
}

// NewOutputTable wraps the simulator's output record
func NewOutputTable(values []field.Element) *OutputTable {
	return &OutputTable{ioTable: newIoTable(outputTableName, ChallengeDelta, TerminalOutputEvaluation, values)}
}
