package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// baseTable carries the state shared by every component table: the base
// matrix, the extension matrix once computed, the interpolants retained
// by the LDE steps, and the padding bookkeeping that terminal constraints
// depend on.
type baseTable struct {
	name           string
	baseWidth      int
	extensionWidth int

	numPaddedRows int

	base      *core.Matrix
	extension *core.Matrix

	basePolys *core.Matrix
	extPolys  *core.Matrix
}

func newBaseTable(name string, baseWidth, extensionWidth int, rows [][]field.Element) baseTable {
	t := baseTable{
		name:           name,
		baseWidth:      baseWidth,
		extensionWidth: extensionWidth,
	}
	t.SetMatrix(rows)
	return t
}

// SetMatrix installs the base rows and resets the padding bookkeeping
func (t *baseTable) SetMatrix(rows [][]field.Element) {
	cols := make([][]field.Element, t.baseWidth)
	for c := range cols {
		cols[c] = make([]field.Element, 0, len(rows))
	}
	for i, row := range rows {
		if len(row) != t.baseWidth {
			panic(fmt.Sprintf("table %s: row %d has %d values, expected %d", t.name, i, len(row), t.baseWidth))
		}
		for c, v := range row {
			cols[c] = append(cols[c], v)
		}
	}
	t.base = core.NewMatrix(cols)
	t.extension = nil
	t.basePolys = nil
	t.extPolys = nil
	t.numPaddedRows = 0
}

func (t *baseTable) Name() string        { return t.name }
func (t *baseTable) BaseWidth() int      { return t.baseWidth }
func (t *baseTable) ExtensionWidth() int { return t.extensionWidth }

// Height is the padded row count
func (t *baseTable) Height() int { return t.base.NumRows() }

// Len is the row count filled during execution
func (t *baseTable) Len() int { return t.Height() - t.numPaddedRows }

func (t *baseTable) NumPaddedRows() int { return t.numPaddedRows }

func (t *baseTable) BaseMatrix() *core.Matrix      { return t.base }
func (t *baseTable) ExtensionMatrix() *core.Matrix { return t.extension }

func (t *baseTable) BasePolynomials() *core.Matrix      { return t.basePolys }
func (t *baseTable) ExtensionPolynomials() *core.Matrix { return t.extPolys }

// Pad appends all-zero rows until the table reaches the target height
func (t *baseTable) Pad(targetHeight int) error {
	height := t.Height()
	if targetHeight < height {
		return fmt.Errorf("table %s: cannot pad %d rows down to %d", t.name, height, targetHeight)
	}
	if !utils.IsPowerOfTwo(targetHeight) {
		return fmt.Errorf("table %s: padding target %d is not a power of two", t.name, targetHeight)
	}

	cols := make([][]field.Element, t.baseWidth)
	for c := 0; c < t.baseWidth; c++ {
		col := make([]field.Element, targetHeight)
		copy(col, t.base.Column(c))
		for i := height; i < targetHeight; i++ {
			col[i] = field.Zero
		}
		cols[c] = col
	}
	t.base = core.NewMatrix(cols)
	t.numPaddedRows += targetHeight - height
	return nil
}

// setExtension installs the computed extension columns
func (t *baseTable) setExtension(cols [][]field.Element) {
	t.extension = core.NewMatrix(cols)
}

// BaseLDE interpolates the padded base columns over the table's own
// trace domain and evaluates them over the shared coset. The
// interpolants stay available for out-of-domain evaluation.
func (t *baseTable) BaseLDE(offset field.Element, codewordLen int, backend core.Backend) (*core.Matrix, error) {
	polys, lde, err := t.lowDegreeExtend(t.base, offset, codewordLen, backend)
	if err != nil {
		return nil, err
	}
	t.basePolys = polys
	return lde, nil
}

// ExtensionLDE evaluates the extension columns over the coset of length
// Height times the expansion factor
func (t *baseTable) ExtensionLDE(offset field.Element, expansionFactor int, backend core.Backend) (*core.Matrix, error) {
	if t.extensionWidth == 0 {
		return nil, nil
	}
	if t.extension == nil {
		return nil, fmt.Errorf("table %s has not been extended", t.name)
	}
	polys, lde, err := t.lowDegreeExtend(t.extension, offset, t.Height()*expansionFactor, backend)
	if err != nil {
		return nil, err
	}
	t.extPolys = polys
	return lde, nil
}

func (t *baseTable) lowDegreeExtend(m *core.Matrix, offset field.Element, codewordLen int, backend core.Backend) (*core.Matrix, *core.Matrix, error) {
	traceDomain, err := core.NewDomain(t.Height())
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	polys, err := m.Clone().IntoPolynomials(traceDomain, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: interpolating: %w", t.name, err)
	}

	ldeDomain, err := core.NewDomain(codewordLen)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	lde, err := polys.Clone().IntoEvaluations(ldeDomain.WithOffset(offset), backend)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: evaluating: %w", t.name, err)
	}
	return polys, lde, nil
}

// NewTables builds the full table set from a simulation record, in the
// fixed commitment order: processor, memory, instruction, input, output.
func NewTables(result *SimulationResult) []protocols.Table {
	return []protocols.Table{
		NewProcessorTable(result.ProcessorRows),
		NewMemoryTable(result.MemoryRows),
		NewInstructionTable(result.InstructionRows),
		NewInputTable(result.InputValues),
		NewOutputTable(result.OutputValues),
	}
}

// TableShape is the statically known shape of one table in commitment
// order. The verifier uses it to slice joined rows back into tables.
type TableShape struct {
	Name           string
	BaseWidth      int
	ExtensionWidth int
}

// Layout returns the table shapes in commitment order
func Layout() []TableShape {
	return []TableShape{
		{Name: processorTableName, BaseWidth: processorBaseWidth, ExtensionWidth: processorExtensionWidth},
		{Name: memoryTableName, BaseWidth: memoryBaseWidth, ExtensionWidth: memoryExtensionWidth},
		{Name: instructionTableName, BaseWidth: instructionBaseWidth, ExtensionWidth: instructionExtensionWidth},
		{Name: inputTableName, BaseWidth: ioBaseWidth, ExtensionWidth: ioExtensionWidth},
		{Name: outputTableName, BaseWidth: ioBaseWidth, ExtensionWidth: ioExtensionWidth},
	}
}

// DefaultInitials returns the initial accumulator values per table in
// commitment order: running products start at one, running evaluations
// at zero.
func DefaultInitials() [][]field.Element {
	return [][]field.Element{
		{field.One, field.One, field.Zero, field.Zero},
		{field.One},
		{field.One, field.Zero},
		{field.Zero},
		{field.Zero},
	}
}

// ConstraintGroups rebuilds every table's constraint system from the
// challenges, the claimed terminals, and the per-table padding counts,
// in commitment order. The verifier calls this with values recovered
// from the proof; the prover's tables produce identical groups.
func ConstraintGroups(challenges, terminals []field.Element, paddedRows []int) ([]protocols.ConstraintGroup, error) {
	ch, err := NewChallenges(challenges)
	if err != nil {
		return nil, err
	}
	if len(terminals) != NumTerminals {
		return nil, fmt.Errorf("got %d terminals, need %d", len(terminals), NumTerminals)
	}
	if len(paddedRows) != len(Layout()) {
		return nil, fmt.Errorf("got %d padding counts for %d tables", len(paddedRows), len(Layout()))
	}
	return []protocols.ConstraintGroup{
		*processorConstraints(ch, terminals, paddedRows[0]),
		*memoryConstraints(ch, terminals, paddedRows[1]),
		*instructionConstraints(ch, terminals, paddedRows[2]),
		*ioConstraints(inputTableName, ch.Gamma(), terminals[TerminalInputEvaluation], paddedRows[3]),
		*ioConstraints(outputTableName, ch.Delta(), terminals[TerminalOutputEvaluation], paddedRows[4]),
	}, nil
}
