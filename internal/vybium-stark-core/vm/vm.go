package vm

import (
	"fmt"
	"io"
	"sort"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Opcode values are the ASCII codes of the eight instructions. Bracket
// instructions are followed by one operand cell holding their jump target.
const (
	OpRight  = uint64('>')
	OpLeft   = uint64('<')
	OpInc    = uint64('+')
	OpDec    = uint64('-')
	OpOutput = uint64('.')
	OpInput  = uint64(',')
	OpJumpZ  = uint64('[')
	OpJumpNZ = uint64(']')
)

// opcodes lists every instruction, in the order used by the deselector
// polynomials
var opcodes = []uint64{OpRight, OpLeft, OpInc, OpDec, OpOutput, OpInput, OpJumpZ, OpJumpNZ}

// MaxCycles bounds simulation length so that a non-terminating program
// fails with an error instead of exhausting memory
const MaxCycles = 1 << 24

// Compile turns brainfuck source into program memory. Non-instruction
// characters are comments. Each bracket is followed by an operand cell:
// '[' holds the address just past its matching ']' pair, ']' holds the
// address just past its matching '[' operand.
func Compile(source string) ([]field.Element, error) {
	var program []field.Element
	var stack []int

	for _, r := range source {
		switch uint64(r) {
		case OpRight, OpLeft, OpInc, OpDec, OpOutput, OpInput:
			program = append(program, field.New(uint64(r)))
		case OpJumpZ:
			program = append(program, field.New(OpJumpZ), field.Zero)
			stack = append(stack, len(program)-1)
		case OpJumpNZ:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unmatched ']' at source position %d", len(program))
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			program = append(program, field.New(OpJumpNZ), field.New(uint64(open+1)))
			program[open] = field.New(uint64(len(program)))
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%d unmatched '[' in source", len(stack))
	}
	return program, nil
}

// SimulationResult is the full execution record: the row sets of every
// component table plus the values crossing the machine boundary.
type SimulationResult struct {
	Program []field.Element

	// ProcessorRows holds one (cycle, ip, ci, ni, mp, mv, mvInverse) row
	// per cycle, ending with the halt row where ci is zero
	ProcessorRows [][]field.Element

	// MemoryRows are the (cycle, mp, mv) projections of the processor
	// rows, sorted by memory pointer first and cycle second
	MemoryRows [][]field.Element

	// InstructionRows are the program's (ip, ci, ni) cells plus one row
	// per processor row, sorted by address with program rows leading
	// their address group
	InstructionRows [][]field.Element

	InputValues  []field.Element
	OutputValues []field.Element

	// Output collects the bytes written by '.' for the caller
	Output []byte
}

// Simulate runs the program to completion and records the execution.
// Reads beyond the provided input fail the run.
func Simulate(program []field.Element, input io.Reader) (*SimulationResult, error) {
	result := &SimulationResult{Program: program}

	memory := make(map[int64]field.Element)
	var ip, mp int64
	cycle := 0
	readBuf := make([]byte, 1)

	cellAt := func(i int64) field.Element {
		if i < 0 || i >= int64(len(program)) {
			return field.Zero
		}
		return program[i]
	}

	for ip < int64(len(program)) {
		if cycle >= MaxCycles {
			return nil, fmt.Errorf("program exceeded %d cycles", MaxCycles)
		}

		ci := cellAt(ip)
		ni := cellAt(ip + 1)
		mv := memory[mp]
		result.ProcessorRows = append(result.ProcessorRows, processorRow(cycle, ip, ci, ni, mp, mv))

		switch ci.Value() {
		case OpRight:
			ip++
			mp++
		case OpLeft:
			if mp == 0 {
				return nil, fmt.Errorf("memory pointer moved below zero at cycle %d", cycle)
			}
			ip++
			mp--
		case OpInc:
			ip++
			memory[mp] = mv.Add(field.One)
		case OpDec:
			ip++
			memory[mp] = mv.Sub(field.One)
		case OpOutput:
			ip++
			result.OutputValues = append(result.OutputValues, mv)
			result.Output = append(result.Output, byte(mv.Value()))
		case OpInput:
			ip++
			if _, err := io.ReadFull(input, readBuf); err != nil {
				return nil, fmt.Errorf("reading input at cycle %d: %w", cycle, err)
			}
			value := field.New(uint64(readBuf[0]))
			memory[mp] = value
			result.InputValues = append(result.InputValues, value)
		case OpJumpZ:
			if mv.IsZero() {
				ip = int64(ni.Value())
			} else {
				ip += 2
			}
		case OpJumpNZ:
			if !mv.IsZero() {
				ip = int64(ni.Value())
			} else {
				ip += 2
			}
		default:
			return nil, fmt.Errorf("invalid instruction %d at address %d", ci.Value(), ip)
		}
		cycle++
	}

	// Halt row: the processor is past the program, reading zeros
	result.ProcessorRows = append(result.ProcessorRows,
		processorRow(cycle, ip, field.Zero, field.Zero, mp, memory[mp]))

	result.MemoryRows = memoryRows(result.ProcessorRows)
	result.InstructionRows = instructionRows(program, result.ProcessorRows)
	return result, nil
}

func processorRow(cycle int, ip int64, ci, ni field.Element, mp int64, mv field.Element) []field.Element {
	mvInverse := field.Zero
	if !mv.IsZero() {
		mvInverse = mv.Inverse()
	}
	return []field.Element{
		field.New(uint64(cycle)),
		field.New(uint64(ip)),
		ci,
		ni,
		field.New(uint64(mp)),
		mv,
		mvInverse,
	}
}

func memoryRows(processorRows [][]field.Element) [][]field.Element {
	rows := make([][]field.Element, len(processorRows))
	for i, p := range processorRows {
		rows[i] = []field.Element{p[ProcCycle], p[ProcMp], p[ProcMv]}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i][MemMp].Value() != rows[j][MemMp].Value() {
			return rows[i][MemMp].Value() < rows[j][MemMp].Value()
		}
		return rows[i][MemCycle].Value() < rows[j][MemCycle].Value()
	})
	return rows
}

func instructionRows(program []field.Element, processorRows [][]field.Element) [][]field.Element {
	rows := make([][]field.Element, 0, len(program)+len(processorRows))
	for i, ci := range program {
		ni := field.Zero
		if i+1 < len(program) {
			ni = program[i+1]
		}
		rows = append(rows, []field.Element{field.New(uint64(i)), ci, ni})
	}
	for _, p := range processorRows {
		rows = append(rows, []field.Element{p[ProcIp], p[ProcCi], p[ProcNi]})
	}
	// Stable so the program row stays first within its address group and
	// execution rows keep cycle order
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i][InstrIp].Value() < rows[j][InstrIp].Value()
	})
	return rows
}

// instructionDeselector vanishes when ci is zero or any opcode other
// than op, so it selects the rows executing op
func instructionDeselector(op uint64, ci field.Element) field.Element {
	result := ci
	for _, o := range opcodes {
		if o != op {
			result = result.Mul(ci.Sub(field.New(o)))
		}
	}
	return result
}

// opcodeZerofier vanishes when ci is any opcode and is nonzero when ci
// is zero, so it selects halt and padding rows
func opcodeZerofier(ci field.Element) field.Element {
	result := field.One
	for _, o := range opcodes {
		result = result.Mul(ci.Sub(field.New(o)))
	}
	return result
}
