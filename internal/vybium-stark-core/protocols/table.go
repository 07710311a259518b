package protocols

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
)

// Table is one component of an algebraic execution trace. A table owns a
// base matrix filled during execution, is padded to the shared power-of-two
// height, produces extension columns once the protocol challenges exist,
// and exposes the constraint sets that tie its columns together.
type Table interface {
	// Name identifies the table in logs and error messages
	Name() string

	// BaseWidth is the number of base columns
	BaseWidth() int

	// ExtensionWidth is the number of extension columns
	ExtensionWidth() int

	// Len is the number of rows filled during execution, before padding
	Len() int

	// Height is the current number of rows, after padding a power of two
	Height() int

	// NumPaddedRows is Height() minus Len()
	NumPaddedRows() int

	// SetMatrix installs the base rows and resets the padding bookkeeping
	SetMatrix(rows [][]field.Element)

	// Pad appends all-zero rows to the base matrix until Height() reaches
	// the target. The target must not be below Len().
	Pad(targetHeight int) error

	// BaseMatrix returns the table's base matrix
	BaseMatrix() *core.Matrix

	// ExtensionMatrix returns the extension matrix, or nil before Extend
	ExtensionMatrix() *core.Matrix

	// Extend computes the table's extension columns from the protocol
	// challenges and the caller-supplied initial accumulator values, one
	// initial per extension column. Tables with no extension columns
	// ignore both arguments.
	Extend(challenges []field.Element, initials []field.Element) error

	// BaseLDE interpolates the padded base columns over the trace domain
	// and evaluates the polynomials over the coset of the given offset and
	// codeword length. The interpolants are retained for later
	// out-of-domain evaluation.
	BaseLDE(offset field.Element, codewordLen int, backend core.Backend) (*core.Matrix, error)

	// ExtensionLDE does for the extension columns what BaseLDE does for
	// the base columns. The codeword length is Height times the expansion
	// factor. Returns nil for tables with no extension columns.
	ExtensionLDE(offset field.Element, expansionFactor int, backend core.Backend) (*core.Matrix, error)

	// BasePolynomials returns the interpolants retained by BaseLDE
	BasePolynomials() *core.Matrix

	// ExtensionPolynomials returns the interpolants retained by
	// ExtensionLDE, or nil
	ExtensionPolynomials() *core.Matrix

	// Constraints returns the table's five constraint sets for the given
	// challenges and terminal values
	Constraints(challenges []field.Element, terminals []field.Element) (*ConstraintGroup, error)
}
