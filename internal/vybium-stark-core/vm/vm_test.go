package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestCompile(t *testing.T) {
	t.Run("straight-line code", func(t *testing.T) {
		program, err := Compile("+-><.,")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		want := []uint64{OpInc, OpDec, OpRight, OpLeft, OpOutput, OpInput}
		if len(program) != len(want) {
			t.Fatalf("got %d cells, want %d", len(program), len(want))
		}
		for i, op := range want {
			if program[i].Value() != op {
				t.Fatalf("cell %d: got %d, want %d", i, program[i].Value(), op)
			}
		}
	})

	t.Run("bracket operands", func(t *testing.T) {
		program, err := Compile(",[-]")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		// ',' '[' 6 '-' ']' 3: the '[' operand points past the loop, the
		// ']' operand points at the loop body
		want := []uint64{OpInput, OpJumpZ, 6, OpDec, OpJumpNZ, 3}
		if len(program) != len(want) {
			t.Fatalf("got %d cells, want %d", len(program), len(want))
		}
		for i, v := range want {
			if program[i].Value() != v {
				t.Fatalf("cell %d: got %d, want %d", i, program[i].Value(), v)
			}
		}
	})

	t.Run("comments are skipped", func(t *testing.T) {
		a, err := Compile("+ hello + world +")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		b, err := Compile("+++")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if len(a) != len(b) {
			t.Fatalf("comments changed program length: %d vs %d", len(a), len(b))
		}
	})

	t.Run("unmatched brackets rejected", func(t *testing.T) {
		if _, err := Compile("[+"); err == nil {
			t.Fatal("expected error for unmatched '['")
		}
		if _, err := Compile("+]"); err == nil {
			t.Fatal("expected error for unmatched ']'")
		}
	})
}

func mustSimulate(t *testing.T, source, input string) *SimulationResult {
	t.Helper()
	program, err := Compile(source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result, err := Simulate(program, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	return result
}

func TestSimulate(t *testing.T) {
	t.Run("output collects written bytes", func(t *testing.T) {
		result := mustSimulate(t, "++.", "")
		if !bytes.Equal(result.Output, []byte{2}) {
			t.Fatalf("got output %v, want [2]", result.Output)
		}
	})

	t.Run("echo", func(t *testing.T) {
		result := mustSimulate(t, ",.,.", "hi")
		if string(result.Output) != "hi" {
			t.Fatalf("got output %q, want %q", result.Output, "hi")
		}
		if len(result.InputValues) != 2 || result.InputValues[0].Value() != 'h' {
			t.Fatal("input record does not match the bytes read")
		}
	})

	t.Run("loop drains the cell", func(t *testing.T) {
		result := mustSimulate(t, ",[-].", "\x03")
		if !bytes.Equal(result.Output, []byte{0}) {
			t.Fatalf("got output %v, want [0]", result.Output)
		}
		// read, enter loop, three decrements with three back jumps, exit, output
		wantCycles := 1 + 1 + 3 + 3 + 1
		if len(result.ProcessorRows) != wantCycles+1 {
			t.Fatalf("got %d processor rows, want %d plus the halt row", len(result.ProcessorRows), wantCycles)
		}
	})

	t.Run("pointer movement", func(t *testing.T) {
		result := mustSimulate(t, "++>+++<[->+<]>.", "")
		if !bytes.Equal(result.Output, []byte{5}) {
			t.Fatalf("got output %v, want [5]", result.Output)
		}
	})

	t.Run("halt row closes the trace", func(t *testing.T) {
		result := mustSimulate(t, "+", "")
		last := result.ProcessorRows[len(result.ProcessorRows)-1]
		if !last[ProcCi].IsZero() || !last[ProcNi].IsZero() {
			t.Fatal("halt row must read zero instructions")
		}
		if last[ProcIp].Value() != uint64(len(result.Program)) {
			t.Fatal("halt row must sit just past the program")
		}
	})

	t.Run("exhausted input fails", func(t *testing.T) {
		program, err := Compile(",,")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if _, err := Simulate(program, strings.NewReader("x")); err == nil {
			t.Fatal("expected error when reading past the input")
		}
	})

	t.Run("pointer underflow fails", func(t *testing.T) {
		program, err := Compile("<")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if _, err := Simulate(program, strings.NewReader("")); err == nil {
			t.Fatal("expected error for pointer below zero")
		}
	})
}

func TestSimulationRowOrder(t *testing.T) {
	result := mustSimulate(t, "++>+++<[->+<]>.", "")

	t.Run("memory rows sorted by cell then cycle", func(t *testing.T) {
		if len(result.MemoryRows) != len(result.ProcessorRows) {
			t.Fatal("memory table must have one row per cycle")
		}
		for i := 1; i < len(result.MemoryRows); i++ {
			prev, cur := result.MemoryRows[i-1], result.MemoryRows[i]
			if prev[MemMp].Value() > cur[MemMp].Value() {
				t.Fatalf("row %d: cell address decreased", i)
			}
			if prev[MemMp].Value() == cur[MemMp].Value() && prev[MemCycle].Value() >= cur[MemCycle].Value() {
				t.Fatalf("row %d: cycle did not increase within the cell group", i)
			}
		}
	})

	t.Run("instruction rows sorted with program rows leading", func(t *testing.T) {
		wantRows := len(result.Program) + len(result.ProcessorRows)
		if len(result.InstructionRows) != wantRows {
			t.Fatalf("got %d instruction rows, want %d", len(result.InstructionRows), wantRows)
		}
		for i := 1; i < len(result.InstructionRows); i++ {
			prev, cur := result.InstructionRows[i-1], result.InstructionRows[i]
			diff := cur[InstrIp].Value() - prev[InstrIp].Value()
			if prev[InstrIp].Value() > cur[InstrIp].Value() {
				t.Fatalf("row %d: address decreased", i)
			}
			if diff == 0 && !cur[InstrCi].IsZero() && !cur[InstrCi].Equal(prev[InstrCi]) {
				t.Fatalf("row %d: instruction changed within an address group", i)
			}
		}
	})
}

func TestInstructionDeselector(t *testing.T) {
	t.Run("selects exactly its opcode", func(t *testing.T) {
		for _, op := range opcodes {
			if instructionDeselector(op, field.New(op)).IsZero() {
				t.Fatalf("deselector for %c vanishes on its own opcode", rune(op))
			}
			for _, other := range opcodes {
				if other == op {
					continue
				}
				if !instructionDeselector(op, field.New(other)).IsZero() {
					t.Fatalf("deselector for %c does not vanish on %c", rune(op), rune(other))
				}
			}
		}
	})

	t.Run("vanishes on halt", func(t *testing.T) {
		for _, op := range opcodes {
			if !instructionDeselector(op, field.Zero).IsZero() {
				t.Fatalf("deselector for %c does not vanish on a zero instruction", rune(op))
			}
		}
	})
}

func TestOpcodeZerofier(t *testing.T) {
	for _, op := range opcodes {
		if !opcodeZerofier(field.New(op)).IsZero() {
			t.Fatalf("zerofier does not vanish on opcode %c", rune(op))
		}
	}
	if opcodeZerofier(field.Zero).IsZero() {
		t.Fatal("zerofier must not vanish on a zero instruction")
	}
}
