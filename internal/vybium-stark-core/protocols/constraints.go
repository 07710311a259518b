// Package protocols drives the multi-phase proving pipeline: commitment of
// the base trace, Fiat-Shamir challenge derivation, extension-column
// commitment, constraint composition, and query assembly.
package protocols

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Constraint is a multivariate polynomial over one row's named value slots
// (base columns followed by extension columns), given as an evaluator.
// The constraint is satisfied where the evaluator returns zero.
type Constraint struct {
	// Name identifies the constraint in logs and transcripts of failures
	Name string

	// Degree is the total degree of the polynomial, used to bound the
	// composition polynomial's degree
	Degree int

	// Evaluator computes the constraint on one row
	Evaluator func(row []field.Element) field.Element
}

// TransitionConstraint is a multivariate polynomial over two consecutive
// rows' value slots. It must vanish for every consecutive row pair.
type TransitionConstraint struct {
	Name string

	Degree int

	// Evaluator computes the constraint on a (current, next) row pair
	Evaluator func(current, next []field.Element) field.Element
}

// ConstraintGroup bundles one table's five constraint sets in the order
// they are weighted into the composition polynomial: base boundary, base
// transition, extension boundary, extension transition, extension
// terminal. The order is part of the transcript and must match between
// prover and verifier.
type ConstraintGroup struct {
	// TableName identifies the component table this group belongs to
	TableName string

	BaseBoundary        []Constraint
	BaseTransition      []TransitionConstraint
	ExtensionBoundary   []Constraint
	ExtensionTransition []TransitionConstraint
	ExtensionTerminal   []Constraint
}

// Count returns the number of constraints in the group
func (g *ConstraintGroup) Count() int {
	return len(g.BaseBoundary) +
		len(g.BaseTransition) +
		len(g.ExtensionBoundary) +
		len(g.ExtensionTransition) +
		len(g.ExtensionTerminal)
}

// MaxDegree returns the maximum degree over all constraints in the group
func (g *ConstraintGroup) MaxDegree() int {
	maxDeg := 0
	for _, c := range g.BaseBoundary {
		if c.Degree > maxDeg {
			maxDeg = c.Degree
		}
	}
	for _, c := range g.BaseTransition {
		if c.Degree > maxDeg {
			maxDeg = c.Degree
		}
	}
	for _, c := range g.ExtensionBoundary {
		if c.Degree > maxDeg {
			maxDeg = c.Degree
		}
	}
	for _, c := range g.ExtensionTransition {
		if c.Degree > maxDeg {
			maxDeg = c.Degree
		}
	}
	for _, c := range g.ExtensionTerminal {
		if c.Degree > maxDeg {
			maxDeg = c.Degree
		}
	}
	return maxDeg
}

// TotalConstraints sums the constraint counts over all groups
func TotalConstraints(groups []ConstraintGroup) int {
	total := 0
	for i := range groups {
		total += groups[i].Count()
	}
	return total
}
