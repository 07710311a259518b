package core

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestDomainElements(t *testing.T) {
	domain, err := NewDomain(4)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	domain = domain.WithOffset(field.New(3))

	elements := domain.Elements()
	if len(elements) != 4 {
		t.Fatalf("got %d elements, want 4", len(elements))
	}
	for i := range elements {
		if !elements[i].Equal(domain.Element(i)) {
			t.Fatalf("Element(%d) disagrees with Elements()", i)
		}
	}
	if !elements[0].Equal(field.New(3)) {
		t.Fatal("first element must be the offset")
	}

	// The generator has order 4: offset * g^4 wraps to the offset
	wrapped := elements[3].Mul(domain.Generator)
	if !wrapped.Equal(elements[0]) {
		t.Fatal("domain does not close under multiplication by the generator")
	}
}

func TestWithOffsetDoesNotMutate(t *testing.T) {
	domain, err := NewDomain(8)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	shifted := domain.WithOffset(field.New(5))
	if !domain.Offset.Equal(field.One) {
		t.Fatal("WithOffset mutated the receiver")
	}
	if !shifted.Offset.Equal(field.New(5)) {
		t.Fatal("shifted domain lost its offset")
	}
	if shifted.Length != domain.Length || !shifted.Generator.Equal(domain.Generator) {
		t.Fatal("shifted domain changed length or generator")
	}
}
