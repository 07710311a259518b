package vm

import (
	"strings"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func testChallenges(t *testing.T) *Challenges {
	t.Helper()
	elements := make([]field.Element, NumChallenges)
	for i := range elements {
		// Arbitrary distinct nonzero values
		elements[i] = field.New(uint64(i)*1000003 + 17)
	}
	ch, err := NewChallenges(elements)
	if err != nil {
		t.Fatalf("NewChallenges: %v", err)
	}
	return ch
}

func TestRunningEvaluation(t *testing.T) {
	challenge := field.New(131)
	symbols := make([]field.Element, 10)
	for i := range symbols {
		symbols[i] = field.New(uint64(i * i))
	}

	column := RunningEvaluation(symbols, field.Zero, challenge)
	if len(column) != len(symbols) {
		t.Fatalf("got %d accumulators, want %d", len(column), len(symbols))
	}

	t.Run("matches the unrolled recurrence", func(t *testing.T) {
		acc := field.Zero
		for i, s := range symbols {
			acc = acc.Mul(challenge).Add(s)
			if !column[i].Equal(acc) {
				t.Fatalf("accumulator %d diverges from the recurrence", i)
			}
		}
	})

	t.Run("terminal equals the last accumulator", func(t *testing.T) {
		terminal := EvaluationTerminal(symbols, field.Zero, challenge)
		if !terminal.Equal(column[len(column)-1]) {
			t.Fatal("terminal disagrees with the running column")
		}
	})

	t.Run("empty input keeps the initial value", func(t *testing.T) {
		terminal := EvaluationTerminal(nil, field.Zero, challenge)
		if !terminal.IsZero() {
			t.Fatal("empty evaluation must stay at its initial value")
		}
	})
}

func TestRunningProduct(t *testing.T) {
	challenge := field.New(997)
	symbols := []field.Element{
		field.New(3), field.New(1), field.New(4), field.New(1), field.New(5),
		field.New(9), field.New(2), field.New(6), field.New(5), field.New(3),
	}

	column := RunningProduct(symbols, field.One, challenge)

	t.Run("matches the unrolled recurrence", func(t *testing.T) {
		acc := field.One
		for i, s := range symbols {
			acc = acc.Mul(challenge.Sub(s))
			if !column[i].Equal(acc) {
				t.Fatalf("accumulator %d diverges from the recurrence", i)
			}
		}
	})

	t.Run("terminal is order independent", func(t *testing.T) {
		shuffled := []field.Element{
			field.New(9), field.New(5), field.New(1), field.New(3), field.New(2),
			field.New(4), field.New(6), field.New(3), field.New(5), field.New(1),
		}
		a := PermutationTerminal(symbols, field.One, challenge)
		b := PermutationTerminal(shuffled, field.One, challenge)
		if !a.Equal(b) {
			t.Fatal("permuted symbols must give the same terminal")
		}
	})

	t.Run("terminal detects a changed symbol", func(t *testing.T) {
		tampered := append([]field.Element{}, symbols...)
		tampered[4] = field.New(8)
		a := PermutationTerminal(symbols, field.One, challenge)
		b := PermutationTerminal(tampered, field.One, challenge)
		if a.Equal(b) {
			t.Fatal("different multisets must give different terminals")
		}
	})
}

func TestComputeTerminals(t *testing.T) {
	ch := testChallenges(t)
	result := mustSimulate(t, ",[-].", "\x05")

	terminals, err := ComputeTerminals(result, ch)
	if err != nil {
		t.Fatalf("ComputeTerminals: %v", err)
	}
	if len(terminals) != NumTerminals {
		t.Fatalf("got %d terminals, want %d", len(terminals), NumTerminals)
	}

	t.Run("io terminals fold the boundary values", func(t *testing.T) {
		wantIn := EvaluationTerminal(result.InputValues, field.Zero, ch.Gamma())
		if !terminals[TerminalInputEvaluation].Equal(wantIn) {
			t.Fatal("input terminal does not fold the values read")
		}
		wantOut := EvaluationTerminal(result.OutputValues, field.Zero, ch.Delta())
		if !terminals[TerminalOutputEvaluation].Equal(wantOut) {
			t.Fatal("output terminal does not fold the values written")
		}
	})

	t.Run("instruction permutation agrees across tables", func(t *testing.T) {
		// The instruction table's execution rows are the processor's rows
		// re-sorted, so the two running products share one terminal
		symbols := make([]field.Element, 0, len(result.InstructionRows))
		for i, row := range result.InstructionRows {
			if row[InstrCi].IsZero() {
				continue
			}
			if i > 0 && row[InstrIp].Equal(result.InstructionRows[i-1][InstrIp]) {
				symbols = append(symbols, ch.CompressInstruction(row[InstrIp], row[InstrCi], row[InstrNi]))
			}
		}
		want := PermutationTerminal(symbols, field.One, ch.Alpha())
		if !terminals[TerminalInstructionPermutation].Equal(want) {
			t.Fatal("instruction permutation terminals diverge between tables")
		}
	})

	t.Run("memory permutation agrees across tables", func(t *testing.T) {
		symbols := make([]field.Element, len(result.MemoryRows))
		for i, row := range result.MemoryRows {
			symbols[i] = ch.CompressMemory(row[MemCycle], row[MemMp], row[MemMv])
		}
		want := PermutationTerminal(symbols, field.One, ch.Beta())
		if !terminals[TerminalMemoryPermutation].Equal(want) {
			t.Fatal("memory permutation terminals diverge between tables")
		}
	})

	t.Run("nil result rejected", func(t *testing.T) {
		if _, err := ComputeTerminals(nil, ch); err == nil {
			t.Fatal("expected error for nil simulation result")
		}
	})
}

func TestProgramEvaluationTerminal(t *testing.T) {
	ch := testChallenges(t)
	program, err := Compile("+[-]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	result, err := Simulate(program, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	terminals, err := ComputeTerminals(result, ch)
	if err != nil {
		t.Fatalf("ComputeTerminals: %v", err)
	}

	// The terminal must be recomputable from the program alone
	recomputed := ProgramEvaluationTerminal(program, ch)
	if !terminals[TerminalProgramEvaluation].Equal(recomputed) {
		t.Fatal("program evaluation terminal is not recomputable from the program")
	}

	other, err := Compile("+[+]")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if ProgramEvaluationTerminal(other, ch).Equal(recomputed) {
		t.Fatal("different programs must give different terminals")
	}
}
