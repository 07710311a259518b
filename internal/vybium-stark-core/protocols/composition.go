package protocols

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/traits"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
)

// batchInversion inverts a slice of field elements via the library's
// Montgomery batch inversion, which is defined on the traits.FiniteField
// interface rather than on field.Element directly.
func batchInversion(elements []field.Element) ([]field.Element, error) {
	wrapped := make([]traits.FiniteField, len(elements))
	for i, e := range elements {
		wrapped[i] = traits.NewBFieldElementAdapter(e)
	}
	inverted, err := traits.BatchInversion(wrapped)
	if err != nil {
		return nil, err
	}
	result := make([]field.Element, len(inverted))
	for i, e := range inverted {
		result[i] = e.(*traits.BFieldElementAdapter).Element
	}
	return result, nil
}

// tableZerofiers holds the zerofier evaluations of one table over the
// shared LDE domain, denominators already inverted. Boundary constraints
// divide by (x - 1), transition constraints by (x^N - 1)/(x - last), and
// terminal constraints by (x - last), where last is the table's final
// trace domain point.
type tableZerofiers struct {
	boundaryInv   []field.Element
	transitionInv []field.Element // inverse of x^N - 1
	transitionNum []field.Element // x - last
	terminalInv   []field.Element
}

func (t *Trace) zerofiersFor(height int) (*tableZerofiers, error) {
	traceDomain, err := core.NewDomain(height)
	if err != nil {
		return nil, err
	}
	last := traceDomain.Element(height - 1)

	points := t.ldeDomain.Elements()
	n := len(points)
	one := field.One

	boundary := make([]field.Element, n)
	transition := make([]field.Element, n)
	transitionNum := make([]field.Element, n)
	terminal := make([]field.Element, n)

	// x^N walks a short cycle: (offset w^i)^N = offset^N (w^N)^i
	heightExp := uint64(height)
	xPow := t.ldeDomain.Offset.ModPow(heightExp)
	xPowStep := t.ldeDomain.Generator.ModPow(heightExp)

	for i, x := range points {
		boundary[i] = x.Sub(one)
		transition[i] = xPow.Sub(one)
		transitionNum[i] = x.Sub(last)
		terminal[i] = transitionNum[i]
		xPow = xPow.Mul(xPowStep)
	}

	boundaryInv, err := batchInversion(boundary)
	if err != nil {
		return nil, fmt.Errorf("inverting boundary zerofier: %w", err)
	}
	transitionInv, err := batchInversion(transition)
	if err != nil {
		return nil, fmt.Errorf("inverting transition zerofier: %w", err)
	}
	terminalInv, err := batchInversion(terminal)
	if err != nil {
		return nil, fmt.Errorf("inverting terminal zerofier: %w", err)
	}

	return &tableZerofiers{
		boundaryInv:   boundaryInv,
		transitionInv: transitionInv,
		transitionNum: transitionNum,
		terminalInv:   terminalInv,
	}, nil
}

// compositionCodeword folds every table's weighted constraint quotients
// into a single codeword over the LDE domain. Weights are consumed per
// table in the fixed group order: base boundary, base transition,
// extension boundary, extension transition, extension terminal.
func (t *Trace) compositionCodeword(groups []ConstraintGroup) (*core.Matrix, error) {
	perTable := make([][]field.Element, len(t.tables))

	wIdx := 0
	for ti, table := range t.tables {
		acc := make([]field.Element, t.codewordLen)
		perTable[ti] = acc
		group := &groups[ti]
		height := table.Height()
		step := t.codewordLen / height

		zerofiers, err := t.zerofiersFor(height)
		if err != nil {
			return nil, fmt.Errorf("zerofiers for table %s: %w", table.Name(), err)
		}

		baseLDE := t.baseLDEs[ti]
		extLDE := t.extLDEs[ti]
		width := baseLDE.NumCols()
		if extLDE != nil {
			width += extLDE.NumCols()
		}
		tableWeights := t.weights[wIdx : wIdx+group.Count()]
		wIdx += group.Count()

		numWorkers := runtime.NumCPU()
		chunkSize := (t.codewordLen + numWorkers - 1) / numWorkers
		var wg sync.WaitGroup
		for start := 0; start < t.codewordLen; start += chunkSize {
			end := start + chunkSize
			if end > t.codewordLen {
				end = t.codewordLen
			}

			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				cur := make([]field.Element, width)
				next := make([]field.Element, width)
				for i := start; i < end; i++ {
					readCombinedRow(baseLDE, extLDE, i, cur)
					readCombinedRow(baseLDE, extLDE, (i+step)%t.codewordLen, next)

					w := 0
					sum := field.Zero
					for _, c := range group.BaseBoundary {
						term := tableWeights[w].Mul(c.Evaluator(cur)).Mul(zerofiers.boundaryInv[i])
						sum = sum.Add(term)
						w++
					}
					for _, c := range group.BaseTransition {
						if height > 1 {
							q := c.Evaluator(cur, next).Mul(zerofiers.transitionNum[i]).Mul(zerofiers.transitionInv[i])
							sum = sum.Add(tableWeights[w].Mul(q))
						}
						w++
					}
					for _, c := range group.ExtensionBoundary {
						term := tableWeights[w].Mul(c.Evaluator(cur)).Mul(zerofiers.boundaryInv[i])
						sum = sum.Add(term)
						w++
					}
					for _, c := range group.ExtensionTransition {
						if height > 1 {
							q := c.Evaluator(cur, next).Mul(zerofiers.transitionNum[i]).Mul(zerofiers.transitionInv[i])
							sum = sum.Add(tableWeights[w].Mul(q))
						}
						w++
					}
					for _, c := range group.ExtensionTerminal {
						term := tableWeights[w].Mul(c.Evaluator(cur)).Mul(zerofiers.terminalInv[i])
						sum = sum.Add(term)
						w++
					}
					acc[i] = sum
				}
			}(start, end)
		}
		wg.Wait()
	}

	return core.NewMatrix(perTable).SumColumns(), nil
}

// readCombinedRow copies row idx of the base codewords followed by the
// extension codewords into buf
func readCombinedRow(base, ext *core.Matrix, idx int, buf []field.Element) {
	base.ReadRow(idx, buf[:base.NumCols()])
	if ext != nil {
		ext.ReadRow(idx, buf[base.NumCols():])
	}
}

// RecombineOutOfDomain evaluates the weighted constraint quotient sum at
// an out-of-domain point z from the claimed trace rows. The verifier
// compares the result against the claimed composition value; equality
// means the committed composition codeword really combines the committed
// trace under the transcript's weights.
func RecombineOutOfDomain(groups []ConstraintGroup, heights []int, z field.Element,
	rows, nextRows [][]field.Element, weights []field.Element) (field.Element, error) {

	if len(heights) != len(groups) || len(rows) != len(groups) || len(nextRows) != len(groups) {
		return field.Element{}, fmt.Errorf("mismatched table counts in out-of-domain recombination")
	}
	if len(weights) != TotalConstraints(groups) {
		return field.Element{}, fmt.Errorf("got %d weights for %d constraints", len(weights), TotalConstraints(groups))
	}

	one := field.One
	sum := field.Zero
	w := 0
	for ti := range groups {
		group := &groups[ti]
		height := heights[ti]
		traceDomain, err := core.NewDomain(height)
		if err != nil {
			return field.Element{}, err
		}
		last := traceDomain.Element(height - 1)

		boundaryInv := z.Sub(one).Inverse()
		zPowHeight := z.ModPow(uint64(height))
		transitionInv := zPowHeight.Sub(one).Inverse()
		transitionNum := z.Sub(last)
		terminalInv := transitionNum.Inverse()

		cur := rows[ti]
		next := nextRows[ti]
		for _, c := range group.BaseBoundary {
			sum = sum.Add(weights[w].Mul(c.Evaluator(cur)).Mul(boundaryInv))
			w++
		}
		for _, c := range group.BaseTransition {
			if height > 1 {
				q := c.Evaluator(cur, next).Mul(transitionNum).Mul(transitionInv)
				sum = sum.Add(weights[w].Mul(q))
			}
			w++
		}
		for _, c := range group.ExtensionBoundary {
			sum = sum.Add(weights[w].Mul(c.Evaluator(cur)).Mul(boundaryInv))
			w++
		}
		for _, c := range group.ExtensionTransition {
			if height > 1 {
				q := c.Evaluator(cur, next).Mul(transitionNum).Mul(transitionInv)
				sum = sum.Add(weights[w].Mul(q))
			}
			w++
		}
		for _, c := range group.ExtensionTerminal {
			sum = sum.Add(weights[w].Mul(c.Evaluator(cur)).Mul(terminalInv))
			w++
		}
	}
	return sum, nil
}
