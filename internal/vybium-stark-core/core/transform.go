package core

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// Backend computes the forward transform (coefficients -> evaluations) and
// the inverse transform (evaluations -> coefficients) of a single column
// over a coset domain.
//
// The sequential and parallel implementations must be interchangeable:
// same inputs, same outputs, no partial results visible to the caller.
type Backend interface {
	// Forward evaluates the polynomial given by coeffs over the domain.
	// Columns shorter than the domain are zero-extended first.
	Forward(coeffs []field.Element, domain *ArithmeticDomain) ([]field.Element, error)

	// Inverse interpolates the evaluations over the domain, returning the
	// coefficient form. The column length must equal the domain length.
	Inverse(evals []field.Element, domain *ArithmeticDomain) ([]field.Element, error)
}

// SequentialBackend runs every transform on the calling goroutine
type SequentialBackend struct{}

// ParallelBackend splits each butterfly stage across worker goroutines.
// It stands in for an accelerated device: the call is synchronous and the
// numeric results are identical to the sequential path.
type ParallelBackend struct{}

// NewBackend returns the backend selected by the configuration
func NewBackend(kind utils.Backend) (Backend, error) {
	switch kind {
	case utils.BackendSequential:
		return &SequentialBackend{}, nil
	case utils.BackendParallel:
		return &ParallelBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown transform backend %q", kind)
	}
}

func (b *SequentialBackend) Forward(coeffs []field.Element, domain *ArithmeticDomain) ([]field.Element, error) {
	return forwardTransform(coeffs, domain, false)
}

func (b *SequentialBackend) Inverse(evals []field.Element, domain *ArithmeticDomain) ([]field.Element, error) {
	return inverseTransform(evals, domain, false)
}

func (b *ParallelBackend) Forward(coeffs []field.Element, domain *ArithmeticDomain) ([]field.Element, error) {
	return forwardTransform(coeffs, domain, true)
}

func (b *ParallelBackend) Inverse(evals []field.Element, domain *ArithmeticDomain) ([]field.Element, error) {
	return inverseTransform(evals, domain, true)
}

// forwardTransform zero-extends coeffs to the domain length, applies the
// coset offset scaling c_i <- c_i * offset^i, and runs the forward NTT.
func forwardTransform(coeffs []field.Element, domain *ArithmeticDomain, parallel bool) ([]field.Element, error) {
	n := domain.Length
	if len(coeffs) > n {
		return nil, fmt.Errorf("column length %d exceeds domain length %d", len(coeffs), n)
	}

	values := make([]field.Element, n)
	copy(values, coeffs)
	for i := len(coeffs); i < n; i++ {
		values[i] = field.Zero
	}

	if !domain.Offset.Equal(field.One) {
		scale := field.One
		for i := 0; i < n; i++ {
			values[i] = values[i].Mul(scale)
			scale = scale.Mul(domain.Offset)
		}
	}

	ntt(values, domain.Generator, parallel)
	return values, nil
}

// inverseTransform runs the inverse NTT and removes the coset offset
// scaling, recovering the coefficient form over the plain subgroup.
func inverseTransform(evals []field.Element, domain *ArithmeticDomain, parallel bool) ([]field.Element, error) {
	n := domain.Length
	if len(evals) != n {
		return nil, fmt.Errorf("column length %d does not match domain length %d", len(evals), n)
	}

	values := make([]field.Element, n)
	copy(values, evals)

	ntt(values, domain.Generator.Inverse(), parallel)

	nInv := field.New(uint64(n)).Inverse()
	for i := 0; i < n; i++ {
		values[i] = values[i].Mul(nInv)
	}

	if !domain.Offset.Equal(field.One) {
		offsetInv := domain.Offset.Inverse()
		scale := field.One
		for i := 0; i < n; i++ {
			values[i] = values[i].Mul(scale)
			scale = scale.Mul(offsetInv)
		}
	}

	return values, nil
}

// parallelCutoff is the transform size below which goroutine fan-out costs
// more than it saves.
const parallelCutoff = 1 << 12

// ntt is an in-place iterative radix-2 Cooley-Tukey transform. Input is in
// natural order; the initial bit-reversal permutation restores natural
// order at the output.
func ntt(values []field.Element, root field.Element, parallel bool) {
	n := len(values)
	if n <= 1 {
		return
	}
	logN := utils.Log2(n)

	BitReverseColumn(values)

	for stage := 1; stage <= logN; stage++ {
		m := 1 << stage
		half := m / 2

		// w_m is a primitive m-th root of unity
		wm := root.ModPow(uint64(n / m))

		applyStage := func(start, end int) {
			for block := start; block < end; block += m {
				w := field.One
				for j := 0; j < half; j++ {
					u := values[block+j]
					t := values[block+j+half].Mul(w)
					values[block+j] = u.Add(t)
					values[block+j+half] = u.Sub(t)
					w = w.Mul(wm)
				}
			}
		}

		numBlocks := n / m
		if !parallel || n < parallelCutoff || numBlocks < 2 {
			applyStage(0, n)
			continue
		}

		workers := runtime.NumCPU()
		if workers > numBlocks {
			workers = numBlocks
		}
		blocksPerWorker := (numBlocks + workers - 1) / workers

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			start := w * blocksPerWorker * m
			end := start + blocksPerWorker*m
			if end > n {
				end = n
			}
			if start >= end {
				break
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				applyStage(start, end)
			}(start, end)
		}
		wg.Wait()
	}
}

// BitReverseColumn permutes a power-of-2 length column into bit-reversed
// index order (an involution).
func BitReverseColumn(values []field.Element) {
	n := len(values)
	if n <= 2 {
		return
	}
	logN := utils.Log2(n)
	for i := 0; i < n; i++ {
		j := int(utils.BitReverse(uint64(i), logN))
		if i < j {
			values[i], values[j] = values[j], values[i]
		}
	}
}
