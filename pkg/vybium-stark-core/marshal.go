package vybiumstarkcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
)

// proofMagic starts every serialized proof; the trailing byte is the
// format version
var proofMagic = []byte{'V', 'S', 'T', 'K', 1}

// MarshalBinary encodes the proof into the versioned wire format
func (p *Proof) MarshalBinary() ([]byte, error) {
	w := &proofWriter{}
	w.bytes(proofMagic)

	w.u32(uint32(p.Options.ExpansionFactor))
	w.u32(uint32(p.Options.NumQueries))
	w.u32(uint32(p.Options.SecurityLevel))
	w.u32(uint32(p.Options.NumRandomizerColumns))
	w.bool(p.Options.Parallel)

	w.blob(p.Meta)
	w.u32(uint32(p.TraceLen))

	w.u32(uint32(len(p.Tables)))
	for _, record := range p.Tables {
		w.blob([]byte(record.Name))
		w.u32(uint32(record.Len))
	}

	w.digest(p.BaseRoot)
	w.bool(p.HasExtension)
	w.digest(p.ExtensionRoot)
	w.digest(p.CompositionRoot)

	w.elements(p.Terminals)
	w.rowSet(p.OodRows)
	w.rowSet(p.OodNextRows)
	w.element(p.OodCompositionValue)

	if p.Queries == nil {
		return nil, fmt.Errorf("proof has no query openings")
	}
	w.u32(uint32(len(p.Queries.Positions)))
	for _, pos := range p.Queries.Positions {
		w.u32(uint32(pos))
	}
	w.rowSet(p.Queries.BaseRows)
	w.bool(p.Queries.ExtensionRows != nil)
	if p.Queries.ExtensionRows != nil {
		w.rowSet(p.Queries.ExtensionRows)
	}
	w.rowSet(p.Queries.CompositionRows)
	w.proofSet(p.Queries.BaseProofs)
	if p.Queries.ExtensionProofs != nil {
		w.proofSet(p.Queries.ExtensionProofs)
	}
	w.proofSet(p.Queries.CompositionProofs)

	return w.buf.Bytes(), nil
}

// UnmarshalBinary decodes a proof from the versioned wire format
func (p *Proof) UnmarshalBinary(data []byte) error {
	r := &proofReader{buf: bytes.NewReader(data)}

	magic := make([]byte, len(proofMagic))
	r.bytes(magic)
	if r.err == nil && !bytes.Equal(magic, proofMagic) {
		return fmt.Errorf("not a proof: bad magic")
	}

	p.Options.ExpansionFactor = int(r.u32())
	p.Options.NumQueries = int(r.u32())
	p.Options.SecurityLevel = int(r.u32())
	p.Options.NumRandomizerColumns = int(r.u32())
	p.Options.Parallel = r.bool()

	p.Meta = r.blob()
	p.TraceLen = int(r.u32())

	numTables := int(r.u32())
	if r.err == nil && numTables > 64 {
		return fmt.Errorf("implausible table count %d", numTables)
	}
	p.Tables = make([]TableRecord, 0, numTables)
	for i := 0; i < numTables && r.err == nil; i++ {
		name := r.blob()
		p.Tables = append(p.Tables, TableRecord{Name: string(name), Len: int(r.u32())})
	}

	p.BaseRoot = r.digest()
	p.HasExtension = r.bool()
	p.ExtensionRoot = r.digest()
	p.CompositionRoot = r.digest()

	p.Terminals = r.elements()
	p.OodRows = r.rowSet()
	p.OodNextRows = r.rowSet()
	p.OodCompositionValue = r.element()

	queries := &protocols.Queries{}
	numPositions := int(r.u32())
	if r.err == nil && numPositions > 1<<20 {
		return fmt.Errorf("implausible query count %d", numPositions)
	}
	queries.Positions = make([]int, 0, numPositions)
	for i := 0; i < numPositions && r.err == nil; i++ {
		queries.Positions = append(queries.Positions, int(r.u32()))
	}
	queries.BaseRows = r.rowSet()
	hasExtRows := r.bool()
	if hasExtRows {
		queries.ExtensionRows = r.rowSet()
	}
	queries.CompositionRows = r.rowSet()
	queries.BaseProofs = r.proofSet()
	if hasExtRows {
		queries.ExtensionProofs = r.proofSet()
	}
	queries.CompositionProofs = r.proofSet()
	p.Queries = queries

	if r.err != nil {
		return fmt.Errorf("decoding proof: %w", r.err)
	}
	return nil
}

type proofWriter struct {
	buf bytes.Buffer
}

func (w *proofWriter) bytes(b []byte) { w.buf.Write(b) }

func (w *proofWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *proofWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *proofWriter) bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *proofWriter) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *proofWriter) element(e Element) { w.u64(e.Value()) }

func (w *proofWriter) elements(elems []Element) {
	w.u32(uint32(len(elems)))
	for _, e := range elems {
		w.element(e)
	}
}

func (w *proofWriter) digest(d Digest) {
	for _, e := range d {
		w.element(e)
	}
}

func (w *proofWriter) rowSet(rows [][]Element) {
	w.u32(uint32(len(rows)))
	for _, row := range rows {
		w.elements(row)
	}
}

func (w *proofWriter) proofSet(proofs []*core.MerkleProof) {
	w.u32(uint32(len(proofs)))
	for _, proof := range proofs {
		w.u32(uint32(proof.LeafIndex))
		w.u32(uint32(len(proof.Path)))
		for _, d := range proof.Path {
			w.digest(d)
		}
	}
}

type proofReader struct {
	buf *bytes.Reader
	err error
}

func (r *proofReader) bytes(b []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.buf, b); err != nil {
		r.err = err
	}
}

func (r *proofReader) u32() uint32 {
	var b [4]byte
	r.bytes(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *proofReader) u64() uint64 {
	var b [8]byte
	r.bytes(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (r *proofReader) bool() bool {
	var b [1]byte
	r.bytes(b[:])
	return b[0] != 0
}

func (r *proofReader) blob() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if int64(n) > int64(r.buf.Len()) {
		r.err = fmt.Errorf("blob length %d exceeds remaining data", n)
		return nil
	}
	b := make([]byte, n)
	r.bytes(b)
	return b
}

func (r *proofReader) element() Element {
	v := r.u64()
	if v >= field.P {
		r.err = fmt.Errorf("element %d out of field range", v)
		return field.Zero
	}
	return field.New(v)
}

func (r *proofReader) elements() []Element {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if int64(n)*8 > int64(r.buf.Len()) {
		r.err = fmt.Errorf("element count %d exceeds remaining data", n)
		return nil
	}
	elems := make([]Element, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		elems = append(elems, r.element())
	}
	return elems
}

func (r *proofReader) digest() Digest {
	var d Digest
	for i := range d {
		d[i] = r.element()
	}
	return d
}

func (r *proofReader) rowSet() [][]Element {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if int64(n)*8 > int64(r.buf.Len()) {
		r.err = fmt.Errorf("row count %d exceeds remaining data", n)
		return nil
	}
	rows := make([][]Element, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		rows = append(rows, r.elements())
	}
	return rows
}

func (r *proofReader) proofSet() []*core.MerkleProof {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if int64(n) > int64(r.buf.Len()) {
		r.err = fmt.Errorf("proof count %d exceeds remaining data", n)
		return nil
	}
	proofs := make([]*core.MerkleProof, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		leafIndex := int(r.u32())
		pathLen := r.u32()
		if r.err != nil || int64(pathLen)*8*int64(len(hash.Digest{})) > int64(r.buf.Len()) {
			if r.err == nil {
				r.err = fmt.Errorf("path length %d exceeds remaining data", pathLen)
			}
			return nil
		}
		path := make([]hash.Digest, 0, pathLen)
		for j := uint32(0); j < pathLen && r.err == nil; j++ {
			path = append(path, r.digest())
		}
		proofs = append(proofs, &core.MerkleProof{LeafIndex: leafIndex, Path: path})
	}
	return proofs
}
