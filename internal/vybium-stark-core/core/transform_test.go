package core

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/polynomial"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// TestForwardAgainstLagrange cross-checks the NTT against naive Lagrange
// interpolation and Horner evaluation of the same data.
func TestForwardAgainstLagrange(t *testing.T) {
	backend := testBackend(t)
	const n = 8

	coeffs := randomishColumn(n, 42)
	poly := polynomial.New(coeffs)

	t.Run("plain subgroup", func(t *testing.T) {
		domain, err := NewDomain(n)
		if err != nil {
			t.Fatalf("NewDomain: %v", err)
		}

		evals, err := backend.Forward(coeffs, domain)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		for i, x := range domain.Elements() {
			want := poly.Evaluate(x)
			if !evals[i].Equal(want) {
				t.Fatalf("evaluation %d: got %d, want %d", i, evals[i].Value(), want.Value())
			}
		}
	})

	t.Run("coset", func(t *testing.T) {
		domain, err := NewDomain(n)
		if err != nil {
			t.Fatalf("NewDomain: %v", err)
		}
		domain = domain.WithOffset(field.New(7))

		evals, err := backend.Forward(coeffs, domain)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		for i, x := range domain.Elements() {
			want := poly.Evaluate(x)
			if !evals[i].Equal(want) {
				t.Fatalf("coset evaluation %d: got %d, want %d", i, evals[i].Value(), want.Value())
			}
		}
	})
}

// TestInverseAgainstLagrange checks that the inverse NTT recovers the same
// polynomial that Lagrange interpolation of the point set produces.
func TestInverseAgainstLagrange(t *testing.T) {
	backend := testBackend(t)
	const n = 8

	domain, err := NewDomain(n)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	evals := randomishColumn(n, 99)

	coeffs, err := backend.Inverse(evals, domain)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}

	points := make([][2]field.Element, n)
	for i, x := range domain.Elements() {
		points[i] = [2]field.Element{x, evals[i]}
	}
	lagrange := polynomial.Interpolate(points)

	// Compare by evaluating both at out-of-domain points
	for _, x := range []field.Element{field.New(3), field.New(1234567), field.New(field.P - 2)} {
		got := polynomial.New(coeffs).Evaluate(x)
		want := lagrange.Evaluate(x)
		if !got.Equal(want) {
			t.Fatalf("at x=%d: NTT interpolant gives %d, Lagrange gives %d", x.Value(), got.Value(), want.Value())
		}
	}
}

func TestBackendsAgree(t *testing.T) {
	sequential, err := NewBackend(utils.BackendSequential)
	if err != nil {
		t.Fatalf("sequential backend: %v", err)
	}
	parallel, err := NewBackend(utils.BackendParallel)
	if err != nil {
		t.Fatalf("parallel backend: %v", err)
	}

	// Large enough to cross the parallel cutoff
	const n = 1 << 13
	domain, err := NewDomain(n)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	domain = domain.WithOffset(field.New(7))
	column := randomishColumn(n, 17)

	t.Run("forward", func(t *testing.T) {
		a, err := sequential.Forward(column, domain)
		if err != nil {
			t.Fatalf("sequential Forward: %v", err)
		}
		b, err := parallel.Forward(column, domain)
		if err != nil {
			t.Fatalf("parallel Forward: %v", err)
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				t.Fatalf("forward transforms disagree at index %d", i)
			}
		}
	})

	t.Run("inverse", func(t *testing.T) {
		a, err := sequential.Inverse(column, domain)
		if err != nil {
			t.Fatalf("sequential Inverse: %v", err)
		}
		b, err := parallel.Inverse(column, domain)
		if err != nil {
			t.Fatalf("parallel Inverse: %v", err)
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				t.Fatalf("inverse transforms disagree at index %d", i)
			}
		}
	})
}

func TestTransformLengthChecks(t *testing.T) {
	backend := testBackend(t)
	domain, err := NewDomain(8)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}

	t.Run("forward zero-extends short columns", func(t *testing.T) {
		evals, err := backend.Forward(randomishColumn(3, 1), domain)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		if len(evals) != 8 {
			t.Fatalf("got %d evaluations, want 8", len(evals))
		}
	})

	t.Run("forward rejects oversized columns", func(t *testing.T) {
		if _, err := backend.Forward(randomishColumn(9, 1), domain); err == nil {
			t.Fatal("expected error for column longer than domain")
		}
	})

	t.Run("inverse rejects length mismatch", func(t *testing.T) {
		if _, err := backend.Inverse(randomishColumn(4, 1), domain); err == nil {
			t.Fatal("expected error for evaluation count below domain length")
		}
	})

	t.Run("non-power-of-two domain rejected", func(t *testing.T) {
		if _, err := NewDomain(12); err == nil {
			t.Fatal("expected error for non-power-of-two length")
		}
	})
}
