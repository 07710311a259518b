package core

import (
	"fmt"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// Matrix is an ordered sequence of equal-length columns of field elements.
//
// The evaluation form and the coefficient form share this one storage type;
// IntoPolynomials and IntoEvaluations convert between them explicitly. Both
// conversions consume the receiver: the returned matrix owns the column
// storage and the input must not be used afterwards.
type Matrix struct {
	cols [][]field.Element
}

// NewMatrix wraps a set of columns. Column lengths are checked lazily by
// NumRows on every access.
func NewMatrix(cols [][]field.Element) *Matrix {
	return &Matrix{cols: cols}
}

// FromRows builds a column-major matrix from row-major input, transposing
func FromRows(rows [][]field.Element) *Matrix {
	numRows := len(rows)
	numCols := 0
	if numRows > 0 {
		numCols = len(rows[0])
	}

	cols := make([][]field.Element, numCols)
	for c := range cols {
		cols[c] = make([]field.Element, 0, numRows)
	}
	for i, row := range rows {
		if len(row) != numCols {
			panic(fmt.Sprintf("row %d has %d values, expected %d", i, len(row), numCols))
		}
		for c, value := range row {
			cols[c] = append(cols[c], value)
		}
	}
	return NewMatrix(cols)
}

// NumRows reports the uniform column length. Unequal column lengths are a
// programming error in trace construction and abort the run.
func (m *Matrix) NumRows() int {
	if len(m.cols) == 0 {
		return 0
	}
	expected := len(m.cols[0])
	for i, col := range m.cols {
		if len(col) != expected {
			panic(fmt.Sprintf("length of column %d is invalid: got %d, expected %d", i, len(col), expected))
		}
	}
	return expected
}

// NumCols returns the number of columns
func (m *Matrix) NumCols() int {
	return len(m.cols)
}

// IsEmpty reports whether the matrix has no rows
func (m *Matrix) IsEmpty() bool {
	return m.NumRows() == 0
}

// Column returns column c by reference
func (m *Matrix) Column(c int) []field.Element {
	return m.cols[c]
}

// Append moves the columns of other onto the end of this matrix's column set
func (m *Matrix) Append(other *Matrix) {
	m.cols = append(m.cols, other.cols...)
}

// Join concatenates the column sets of all matrices into one matrix
func Join(matrices []*Matrix) *Matrix {
	joined := NewMatrix(nil)
	for _, matrix := range matrices {
		joined.Append(matrix)
	}
	return joined
}

// Clone returns a deep copy with its own column storage
func (m *Matrix) Clone() *Matrix {
	cols := make([][]field.Element, len(m.cols))
	for c, col := range m.cols {
		cols[c] = make([]field.Element, len(col))
		copy(cols[c], col)
	}
	return NewMatrix(cols)
}

// GetRow returns a copy of row idx
func (m *Matrix) GetRow(idx int) ([]field.Element, error) {
	if idx < 0 || idx >= m.NumRows() {
		return nil, fmt.Errorf("row %d out of range [0, %d)", idx, m.NumRows())
	}
	row := make([]field.Element, m.NumCols())
	m.ReadRow(idx, row)
	return row, nil
}

// ReadRow copies row idx into the provided buffer
func (m *Matrix) ReadRow(idx int, row []field.Element) {
	for c := range m.cols {
		row[c] = m.cols[c][idx]
	}
}

// Rows returns the whole matrix in row-major form
func (m *Matrix) Rows() [][]field.Element {
	numRows := m.NumRows()
	rows := make([][]field.Element, numRows)
	for i := 0; i < numRows; i++ {
		rows[i] = make([]field.Element, m.NumCols())
		m.ReadRow(i, rows[i])
	}
	return rows
}

// IntoPolynomials treats each column as evaluations over the domain and
// replaces it with the interpolating polynomial's coefficients. Columns are
// independent units of work and transform in parallel.
func (m *Matrix) IntoPolynomials(domain *ArithmeticDomain, backend Backend) (*Matrix, error) {
	return m.transformColumns(func(col []field.Element) ([]field.Element, error) {
		return backend.Inverse(col, domain)
	})
}

// IntoEvaluations evaluates each coefficient-form column over the domain,
// zero-extending columns shorter than the domain first.
func (m *Matrix) IntoEvaluations(domain *ArithmeticDomain, backend Backend) (*Matrix, error) {
	return m.transformColumns(func(col []field.Element) ([]field.Element, error) {
		return backend.Forward(col, domain)
	})
}

// IntoBitReversedEvaluations evaluates and then permutes each column into
// bit-reversed row order, so that query positions derived from a
// decimation-in-time transform index the natural trace row order.
func (m *Matrix) IntoBitReversedEvaluations(domain *ArithmeticDomain, backend Backend) (*Matrix, error) {
	evaluations, err := m.IntoEvaluations(domain, backend)
	if err != nil {
		return nil, err
	}
	evaluations.BitReverseRows()
	return evaluations, nil
}

// transformColumns applies fn to every column in parallel, one goroutine
// per column
func (m *Matrix) transformColumns(fn func([]field.Element) ([]field.Element, error)) (*Matrix, error) {
	numCols := m.NumCols()
	out := make([][]field.Element, numCols)

	var wg sync.WaitGroup
	errs := make(chan error, numCols)

	for c := 0; c < numCols; c++ {
		wg.Add(1)
		go func(colIdx int) {
			defer wg.Done()

			transformed, err := fn(m.cols[colIdx])
			if err != nil {
				errs <- fmt.Errorf("failed to transform column %d: %w", colIdx, err)
				return
			}
			out[colIdx] = transformed
		}(c)
	}

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	return NewMatrix(out), nil
}

// BitReverseRows applies the bit-reversal permutation to every column
// independently, in place
func (m *Matrix) BitReverseRows() {
	var wg sync.WaitGroup
	for c := range m.cols {
		wg.Add(1)
		go func(col []field.Element) {
			defer wg.Done()
			BitReverseColumn(col)
		}(m.cols[c])
	}
	wg.Wait()
}

// hashChunkSize is the smallest row range worth a dedicated goroutine
const hashChunkSize = 128

// HashRows produces one Tip5 digest per row, hashing that row's values
// across all columns. Rows are processed in independent contiguous chunks;
// each chunk owns a disjoint slice of the output. The digests are the
// Merkle leaves of the commitment, so order matters.
func (m *Matrix) HashRows() []hash.Digest {
	numRows := m.NumRows()
	numCols := m.NumCols()
	digests := make([]hash.Digest, numRows)

	var wg sync.WaitGroup
	for start := 0; start < numRows; start += hashChunkSize {
		end := start + hashChunkSize
		if end > numRows {
			end = numRows
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			// Reuse one buffer across the chunk to avoid per-row allocations
			row := make([]field.Element, numCols)
			for i := start; i < end; i++ {
				m.ReadRow(i, row)
				digests[i] = hash.HashVarlen(row)
			}
		}(start, end)
	}
	wg.Wait()

	return digests
}

// EvaluateAt Horner-evaluates every coefficient-form column at a single
// out-of-domain point x
func (m *Matrix) EvaluateAt(x field.Element) []field.Element {
	values := make([]field.Element, m.NumCols())

	var wg sync.WaitGroup
	for c := range m.cols {
		wg.Add(1)
		go func(colIdx int) {
			defer wg.Done()

			result := field.Zero
			col := m.cols[colIdx]
			for i := len(col) - 1; i >= 0; i-- {
				result = result.Mul(x).Add(col[i])
			}
			values[colIdx] = result
		}(c)
	}
	wg.Wait()

	return values
}

// ColumnDegrees returns, per coefficient-form column, the index of the
// highest non-zero coefficient (0 for the zero column)
func (m *Matrix) ColumnDegrees() []int {
	degrees := make([]int, m.NumCols())
	for c, col := range m.cols {
		for i := len(col) - 1; i >= 0; i-- {
			if !col[i].IsZero() {
				degrees[c] = i
				break
			}
		}
	}
	return degrees
}

// sumChunkSize is the smallest accumulation range worth a dedicated goroutine
const sumChunkSize = 1024

// SumColumns folds all columns into a single column by element-wise
// addition. Accumulation is chunked over disjoint row ranges so no two
// goroutines write the same output element. A matrix with no columns
// yields a single empty column.
func (m *Matrix) SumColumns() *Matrix {
	n := m.NumRows()
	accumulator := make([]field.Element, n)
	for i := range accumulator {
		accumulator[i] = field.Zero
	}

	if m.NumCols() != 0 {
		var wg sync.WaitGroup
		for start := 0; start < n; start += sumChunkSize {
			end := start + sumChunkSize
			if end > n {
				end = n
			}

			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for _, col := range m.cols {
					for i := start; i < end; i++ {
						accumulator[i] = accumulator[i].Add(col[i])
					}
				}
			}(start, end)
		}
		wg.Wait()
	}

	return NewMatrix([][]field.Element{accumulator})
}
