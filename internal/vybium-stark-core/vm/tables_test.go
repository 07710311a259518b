package vm

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// extendedTables pads every table to its own power-of-two height and
// computes the extension columns, mirroring the commitment pipeline.
func extendedTables(t *testing.T, result *SimulationResult, challenges []field.Element) []protocols.Table {
	t.Helper()
	tables := NewTables(result)
	initials := DefaultInitials()
	for i, table := range tables {
		if err := table.Pad(utils.NextPowerOfTwo(table.Len())); err != nil {
			t.Fatalf("padding %s table: %v", table.Name(), err)
		}
		if err := table.Extend(challenges, initials[i]); err != nil {
			t.Fatalf("extending %s table: %v", table.Name(), err)
		}
	}
	return tables
}

func rawChallenges(t *testing.T) []field.Element {
	t.Helper()
	elements := make([]field.Element, NumChallenges)
	for i := range elements {
		elements[i] = field.New(uint64(i)*1000003 + 17)
	}
	return elements
}

// combinedRows joins each table row's base and extension values into the
// slot layout the constraint evaluators expect.
func combinedRows(t *testing.T, table protocols.Table) [][]field.Element {
	t.Helper()
	rows := make([][]field.Element, table.Height())
	for i := range rows {
		row := make([]field.Element, 0, table.BaseWidth()+table.ExtensionWidth())
		baseRow, err := table.BaseMatrix().GetRow(i)
		if err != nil {
			t.Fatalf("base row %d: %v", i, err)
		}
		row = append(row, baseRow...)
		if table.ExtensionWidth() > 0 {
			extRow, err := table.ExtensionMatrix().GetRow(i)
			if err != nil {
				t.Fatalf("extension row %d: %v", i, err)
			}
			row = append(row, extRow...)
		}
		rows[i] = row
	}
	return rows
}

// assertGroupSatisfied checks every constraint of a group against the
// padded, extended table: boundary constraints on the first row,
// transition constraints on every consecutive row pair, and terminal
// constraints on the last row.
func assertGroupSatisfied(t *testing.T, table protocols.Table, group *protocols.ConstraintGroup) {
	t.Helper()
	rows := combinedRows(t, table)

	for _, c := range append(append([]protocols.Constraint{}, group.BaseBoundary...), group.ExtensionBoundary...) {
		if v := c.Evaluator(rows[0]); !v.IsZero() {
			t.Errorf("%s: boundary constraint %q gives %d on the first row", table.Name(), c.Name, v.Value())
		}
	}

	transitions := append(append([]protocols.TransitionConstraint{}, group.BaseTransition...), group.ExtensionTransition...)
	for i := 0; i+1 < len(rows); i++ {
		for _, c := range transitions {
			if v := c.Evaluator(rows[i], rows[i+1]); !v.IsZero() {
				t.Errorf("%s: transition constraint %q gives %d on rows %d, %d",
					table.Name(), c.Name, v.Value(), i, i+1)
			}
		}
	}

	last := rows[len(rows)-1]
	for _, c := range group.ExtensionTerminal {
		if v := c.Evaluator(last); !v.IsZero() {
			t.Errorf("%s: terminal constraint %q gives %d on the last row", table.Name(), c.Name, v.Value())
		}
	}
}

func TestConstraintsHoldOnHonestTraces(t *testing.T) {
	programs := map[string]struct {
		source string
		input  string
	}{
		"arithmetic and loops": {source: "++>+++<[->+<]>.", input: ""},
		"echo":                 {source: ",.,.", input: "hi"},
		"drain loop":           {source: ",[-].", input: "\x09"},
	}

	for name, tc := range programs {
		t.Run(name, func(t *testing.T) {
			result := mustSimulate(t, tc.source, tc.input)
			challenges := rawChallenges(t)
			ch, err := NewChallenges(challenges)
			if err != nil {
				t.Fatalf("NewChallenges: %v", err)
			}
			terminals, err := ComputeTerminals(result, ch)
			if err != nil {
				t.Fatalf("ComputeTerminals: %v", err)
			}

			tables := extendedTables(t, result, challenges)
			for _, table := range tables {
				group, err := table.Constraints(challenges, terminals)
				if err != nil {
					t.Fatalf("constraints for %s table: %v", table.Name(), err)
				}
				assertGroupSatisfied(t, table, group)
			}
		})
	}
}

func TestConstraintGroupsMatchTables(t *testing.T) {
	// The verifier rebuilds the constraint systems without table
	// instances; the rebuilt groups must describe the same constraints.
	result := mustSimulate(t, "++>+++<[->+<]>.", "")
	challenges := rawChallenges(t)
	ch, err := NewChallenges(challenges)
	if err != nil {
		t.Fatalf("NewChallenges: %v", err)
	}
	terminals, err := ComputeTerminals(result, ch)
	if err != nil {
		t.Fatalf("ComputeTerminals: %v", err)
	}
	tables := extendedTables(t, result, challenges)

	paddedRows := make([]int, len(tables))
	for i, table := range tables {
		paddedRows[i] = table.NumPaddedRows()
	}
	groups, err := ConstraintGroups(challenges, terminals, paddedRows)
	if err != nil {
		t.Fatalf("ConstraintGroups: %v", err)
	}
	if len(groups) != len(tables) {
		t.Fatalf("got %d groups for %d tables", len(groups), len(tables))
	}

	for i, table := range tables {
		fromTable, err := table.Constraints(challenges, terminals)
		if err != nil {
			t.Fatalf("constraints for %s table: %v", table.Name(), err)
		}
		if groups[i].TableName != table.Name() {
			t.Fatalf("group %d is for %s, want %s", i, groups[i].TableName, table.Name())
		}
		if groups[i].Count() != fromTable.Count() {
			t.Fatalf("%s: rebuilt group has %d constraints, table has %d",
				table.Name(), groups[i].Count(), fromTable.Count())
		}
		// The rebuilt group must also hold on the honest trace
		assertGroupSatisfied(t, table, &groups[i])
	}
}

func TestIoTerminalPaddingOffset(t *testing.T) {
	gamma := field.New(271828)
	challenges := make([]field.Element, NumChallenges)
	for i := range challenges {
		challenges[i] = field.New(uint64(i + 2))
	}
	challenges[ChallengeGamma] = gamma

	values := []field.Element{
		field.New(1), field.New(2), field.New(3), field.New(4), field.New(5),
	}
	table := NewInputTable(values)
	if err := table.Pad(8); err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if err := table.Extend(challenges, []field.Element{field.Zero}); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	terminal := EvaluationTerminal(values, field.Zero, gamma)
	lastAcc := table.ExtensionMatrix().Column(IoEvaluation)[7]

	t.Run("padding multiplies the accumulator by the challenge", func(t *testing.T) {
		// Three padded rows shift the terminal by gamma cubed
		want := terminal.Mul(gamma.ModPow(3))
		if !lastAcc.Equal(want) {
			t.Fatal("final accumulator does not carry the padding offset")
		}
	})

	t.Run("terminal constraint compensates", func(t *testing.T) {
		group := ioConstraints(inputTableName, gamma, terminal, 3)
		row := []field.Element{field.Zero, lastAcc}
		if v := group.ExtensionTerminal[0].Evaluator(row); !v.IsZero() {
			t.Fatalf("compensated terminal constraint gives %d", v.Value())
		}
	})

	t.Run("omitting the offset breaks the link", func(t *testing.T) {
		group := ioConstraints(inputTableName, gamma, terminal, 0)
		row := []field.Element{field.Zero, lastAcc}
		if v := group.ExtensionTerminal[0].Evaluator(row); v.IsZero() {
			t.Fatal("uncompensated terminal constraint must not vanish on a padded table")
		}
	})
}

func TestEmptyIoTable(t *testing.T) {
	table := NewOutputTable(nil)
	if err := table.Pad(utils.NextPowerOfTwo(table.Len())); err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if table.Height() != 1 || table.NumPaddedRows() != 1 {
		t.Fatalf("empty table padded to height %d with %d padded rows, want 1 and 1",
			table.Height(), table.NumPaddedRows())
	}

	challenges := rawChallenges(t)
	if err := table.Extend(challenges, []field.Element{field.Zero}); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	terminals := make([]field.Element, NumTerminals)
	group, err := table.Constraints(challenges, terminals)
	if err != nil {
		t.Fatalf("Constraints: %v", err)
	}
	assertGroupSatisfied(t, table, group)
}

func TestTableLayout(t *testing.T) {
	result := mustSimulate(t, "+.", "")
	tables := NewTables(result)
	layout := Layout()
	if len(layout) != len(tables) {
		t.Fatalf("layout describes %d tables, built %d", len(layout), len(tables))
	}
	for i, shape := range layout {
		if tables[i].Name() != shape.Name {
			t.Fatalf("table %d is %s, layout says %s", i, tables[i].Name(), shape.Name)
		}
		if tables[i].BaseWidth() != shape.BaseWidth || tables[i].ExtensionWidth() != shape.ExtensionWidth {
			t.Fatalf("table %s widths diverge from the layout", shape.Name)
		}
	}
	if len(DefaultInitials()) != len(layout) {
		t.Fatal("initials must cover every table")
	}
	for i, initials := range DefaultInitials() {
		if len(initials) != layout[i].ExtensionWidth {
			t.Fatalf("table %s has %d initials for %d extension columns",
				layout[i].Name, len(initials), layout[i].ExtensionWidth)
		}
	}
}
