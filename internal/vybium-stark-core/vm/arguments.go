package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// RunningEvaluation returns the column of Horner accumulations
//
//	acc_0 = challenge * initial + symbols[0]
//	acc_i = challenge * acc_{i-1} + symbols[i]
//
// Symbols contributed by all-zero padding rows multiply the accumulator
// by the challenge without absorbing anything, which is why terminal
// checks over padded columns compensate with a challenge power.
func RunningEvaluation(symbols []field.Element, initial, challenge field.Element) []field.Element {
	column := make([]field.Element, len(symbols))
	acc := initial
	for i, s := range symbols {
		acc = acc.Mul(challenge).Add(s)
		column[i] = acc
	}
	return column
}

// EvaluationTerminal returns the final accumulator of RunningEvaluation
// without materializing the column
func EvaluationTerminal(symbols []field.Element, initial, challenge field.Element) field.Element {
	acc := initial
	for _, s := range symbols {
		acc = acc.Mul(challenge).Add(s)
	}
	return acc
}

// RunningProduct returns the column of accumulations
//
//	acc_0 = initial * (challenge - symbols[0])
//	acc_i = acc_{i-1} * (challenge - symbols[i])
//
// Two such products over the same multiset of symbols agree on their
// final value regardless of order, which is what the permutation
// arguments between tables rely on.
func RunningProduct(symbols []field.Element, initial, challenge field.Element) []field.Element {
	column := make([]field.Element, len(symbols))
	acc := initial
	for i, s := range symbols {
		acc = acc.Mul(challenge.Sub(s))
		column[i] = acc
	}
	return column
}

// PermutationTerminal returns the final accumulator of RunningProduct
func PermutationTerminal(symbols []field.Element, initial, challenge field.Element) field.Element {
	acc := initial
	for _, s := range symbols {
		acc = acc.Mul(challenge.Sub(s))
	}
	return acc
}

// ComputeTerminals evaluates all five cross-table argument terminals over
// the unpadded simulation record. The prover commits to these and the
// verifier checks them against the tables' terminal constraints; the
// program evaluation terminal is additionally recomputable from the
// public program alone.
func ComputeTerminals(result *SimulationResult, ch *Challenges) ([]field.Element, error) {
	if result == nil {
		return nil, fmt.Errorf("nil simulation result")
	}

	terminals := make([]field.Element, NumTerminals)

	instrPerm := field.One
	memPerm := field.One
	for _, row := range result.ProcessorRows {
		if !row[ProcCi].IsZero() {
			combo := ch.CompressInstruction(row[ProcIp], row[ProcCi], row[ProcNi])
			instrPerm = instrPerm.Mul(ch.Alpha().Sub(combo))
		}
		combo := ch.CompressMemory(row[ProcCycle], row[ProcMp], row[ProcMv])
		memPerm = memPerm.Mul(ch.Beta().Sub(combo))
	}
	terminals[TerminalInstructionPermutation] = instrPerm
	terminals[TerminalMemoryPermutation] = memPerm

	terminals[TerminalInputEvaluation] = EvaluationTerminal(result.InputValues, field.Zero, ch.Gamma())
	terminals[TerminalOutputEvaluation] = EvaluationTerminal(result.OutputValues, field.Zero, ch.Delta())
	terminals[TerminalProgramEvaluation] = ProgramEvaluationTerminal(result.Program, ch)

	return terminals, nil
}

// ProgramEvaluationTerminal Horner-folds the program's (ip, ci, ni) cells
// under the eta challenge. The verifier recomputes it from the public
// program, binding the committed trace to the claimed program.
func ProgramEvaluationTerminal(program []field.Element, ch *Challenges) field.Element {
	acc := field.Zero
	for i, ci := range program {
		ni := field.Zero
		if i+1 < len(program) {
			ni = program[i+1]
		}
		combo := ch.CompressInstruction(field.New(uint64(i)), ci, ni)
		acc = acc.Mul(ch.Eta()).Add(combo)
	}
	return acc
}
