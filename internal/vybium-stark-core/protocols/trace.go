package protocols

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

const (
	// MinTraceLength is the smallest domain the trace is interpolated over.
	// Short executions are padded up to it.
	MinTraceLength = 2048

	// MaxTraceWidth caps the total column count across all tables,
	// randomizers included
	MaxTraceWidth = 255

	// MaxMetaBytes caps the public metadata bound to a trace
	MaxMetaBytes = 65535
)

// TraceInfo describes the shape of a committed trace. The verifier derives
// commitment layout and transcript absorption order from it, so it is part
// of the proof.
type TraceInfo struct {
	NumBaseColumns      int
	NumExtensionColumns int
	TraceLen            int
	Meta                []byte
}

// NewTraceInfo validates the trace shape. Violations are programming
// errors in trace construction and abort the run.
func NewTraceInfo(numBaseColumns, numExtensionColumns, traceLen int, meta []byte) TraceInfo {
	if numBaseColumns < 1 {
		panic("trace must have at least one base column")
	}
	if numBaseColumns+numExtensionColumns > MaxTraceWidth {
		panic(fmt.Sprintf("trace width %d exceeds maximum %d",
			numBaseColumns+numExtensionColumns, MaxTraceWidth))
	}
	if traceLen < MinTraceLength {
		panic(fmt.Sprintf("trace length %d below minimum %d", traceLen, MinTraceLength))
	}
	if !utils.IsPowerOfTwo(traceLen) {
		panic(fmt.Sprintf("trace length %d is not a power of two", traceLen))
	}
	if len(meta) > MaxMetaBytes {
		panic(fmt.Sprintf("trace metadata of %d bytes exceeds maximum %d", len(meta), MaxMetaBytes))
	}
	return TraceInfo{
		NumBaseColumns:      numBaseColumns,
		NumExtensionColumns: numExtensionColumns,
		TraceLen:            traceLen,
		Meta:                meta,
	}
}

// NumColumns returns the total column count, base plus extension
func (ti TraceInfo) NumColumns() int {
	return ti.NumBaseColumns + ti.NumExtensionColumns
}

// Trace owns the component tables and moves them through the commitment
// phases: base commit, challenge derivation, extension commit, composition
// commit, out-of-domain evaluation, and query assembly. Every phase feeds
// the transcript before the next phase samples from it.
type Trace struct {
	cfg     *utils.Config
	backend core.Backend
	tables  []Table
	meta    []byte
	seed    []byte

	info        TraceInfo
	mainHeight  int
	codewordLen int
	ldeDomain   *core.ArithmeticDomain

	baseLDEs        []*core.Matrix
	randomizerLDE   *core.Matrix
	randomizerPolys *core.Matrix
	baseJoined      *core.Matrix
	baseTree        *core.MerkleTree

	extLDEs   []*core.Matrix
	extJoined *core.Matrix
	extTree   *core.MerkleTree

	compositionLDE   *core.Matrix
	compositionPolys *core.Matrix
	compositionTree  *core.MerkleTree

	challenges []field.Element
	terminals  []field.Element
	weights    []field.Element
}

// NewTrace wraps the component tables. The randomizer seed feeds the
// stream cipher that fills the zero-knowledge randomizer columns; it must
// be fresh per proof.
func NewTrace(tables []Table, cfg *utils.Config, meta []byte, randomizerSeed []byte) (*Trace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("trace needs at least one table")
	}
	if len(meta) > MaxMetaBytes {
		return nil, fmt.Errorf("metadata of %d bytes exceeds maximum %d", len(meta), MaxMetaBytes)
	}

	numBase := cfg.NumRandomizerColumns
	numExt := 0
	for _, table := range tables {
		numBase += table.BaseWidth()
		numExt += table.ExtensionWidth()
	}
	if numBase+numExt > MaxTraceWidth {
		return nil, fmt.Errorf("total trace width %d exceeds maximum %d", numBase+numExt, MaxTraceWidth)
	}

	backend, err := core.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	return &Trace{
		cfg:     cfg,
		backend: backend,
		tables:  tables,
		meta:    meta,
		seed:    randomizerSeed,
	}, nil
}

// Info returns the trace shape. Valid after CommitBase.
func (t *Trace) Info() TraceInfo {
	return t.info
}

// Tables returns the component tables in commitment order
func (t *Trace) Tables() []Table {
	return t.tables
}

// CodewordLength returns the shared LDE codeword length. Valid after
// CommitBase.
func (t *Trace) CodewordLength() int {
	return t.codewordLen
}

// Challenges returns the challenges sampled by SampleChallenges
func (t *Trace) Challenges() []field.Element {
	return t.challenges
}

// Terminals returns the terminal values recorded by ExtendAndCommit
func (t *Trace) Terminals() []field.Element {
	return t.terminals
}

// Weights returns the composition weights sampled by CommitComposition
func (t *Trace) Weights() []field.Element {
	return t.weights
}

// CommitBase pads every table to its own power-of-two height, low-degree
// extends the base columns over the shared coset, appends the randomizer
// columns, and commits the joined matrix row-wise into a Merkle tree. The
// trace shape and the root are absorbed into the transcript.
func (t *Trace) CommitBase(ts *Transcript) (hash.Digest, error) {
	maxHeight := 1
	for _, table := range t.tables {
		target := utils.NextPowerOfTwo(table.Len())
		if err := table.Pad(target); err != nil {
			return hash.Digest{}, fmt.Errorf("padding table %s: %w", table.Name(), err)
		}
		if target > maxHeight {
			maxHeight = target
		}
	}

	t.mainHeight = maxHeight
	if t.mainHeight < MinTraceLength {
		t.mainHeight = MinTraceLength
	}
	t.codewordLen = t.mainHeight * t.cfg.ExpansionFactor

	ldeDomain, err := core.NewDomain(t.codewordLen)
	if err != nil {
		return hash.Digest{}, err
	}
	t.ldeDomain = ldeDomain.WithOffset(t.cfg.CosetOffset)

	numBase := t.cfg.NumRandomizerColumns
	numExt := 0
	t.baseLDEs = make([]*core.Matrix, len(t.tables))
	for i, table := range t.tables {
		numBase += table.BaseWidth()
		numExt += table.ExtensionWidth()
		lde, err := table.BaseLDE(t.cfg.CosetOffset, t.codewordLen, t.backend)
		if err != nil {
			return hash.Digest{}, fmt.Errorf("base LDE of table %s: %w", table.Name(), err)
		}
		t.baseLDEs[i] = lde
		log.WithFields(log.Fields{
			"table":  table.Name(),
			"rows":   table.Len(),
			"height": table.Height(),
		}).Debug("extended base columns")
	}

	if err := t.buildRandomizers(); err != nil {
		return hash.Digest{}, err
	}

	joined := core.Join(t.baseLDEs)
	if t.randomizerLDE != nil {
		joined.Append(t.randomizerLDE)
	}
	t.baseJoined = joined

	tree, err := core.NewMerkleTree(joined.HashRows())
	if err != nil {
		return hash.Digest{}, fmt.Errorf("committing base trace: %w", err)
	}
	t.baseTree = tree

	t.info = NewTraceInfo(numBase, numExt, t.mainHeight, t.meta)

	ts.AbsorbElements([]field.Element{
		field.New(uint64(t.info.NumBaseColumns)),
		field.New(uint64(t.info.NumExtensionColumns)),
		field.New(uint64(t.info.TraceLen)),
	})
	ts.AbsorbBytes(t.meta)
	root := tree.Root()
	ts.AbsorbDigest(root)

	log.WithFields(log.Fields{
		"columns":  joined.NumCols(),
		"codeword": t.codewordLen,
	}).Info("committed base trace")
	return root, nil
}

// buildRandomizers fills the zero-knowledge columns from a ChaCha20
// stream keyed by the proof seed, then extends them like trace columns.
func (t *Trace) buildRandomizers() error {
	if t.cfg.NumRandomizerColumns == 0 {
		return nil
	}

	key := sha3.Sum256(t.seed)
	nonce := make([]byte, chacha20.NonceSize)
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return fmt.Errorf("seeding randomizer stream: %w", err)
	}

	buf := make([]byte, 8*t.mainHeight*t.cfg.NumRandomizerColumns)
	cipher.XORKeyStream(buf, buf)

	cols := make([][]field.Element, t.cfg.NumRandomizerColumns)
	for c := range cols {
		cols[c] = make([]field.Element, t.mainHeight)
		for i := range cols[c] {
			word := binary.LittleEndian.Uint64(buf[8*(c*t.mainHeight+i):])
			cols[c][i] = field.New(word % field.P)
		}
	}

	traceDomain, err := core.NewDomain(t.mainHeight)
	if err != nil {
		return err
	}
	polys, err := core.NewMatrix(cols).IntoPolynomials(traceDomain, t.backend)
	if err != nil {
		return fmt.Errorf("interpolating randomizer columns: %w", err)
	}
	t.randomizerPolys = polys

	lde, err := polys.Clone().IntoEvaluations(t.ldeDomain, t.backend)
	if err != nil {
		return fmt.Errorf("extending randomizer columns: %w", err)
	}
	t.randomizerLDE = lde
	return nil
}

// SampleChallenges draws n challenges from the transcript. They are bound
// to the base commitment absorbed by CommitBase.
func (t *Trace) SampleChallenges(ts *Transcript, n int) []field.Element {
	t.challenges = ts.SampleElements(n)
	log.WithField("count", n).Debug("sampled challenges")
	return t.challenges
}

// ExtendAndCommit computes every table's extension columns, low-degree
// extends and commits them, and absorbs the commitment together with the
// claimed terminal values. Tables without extension columns contribute
// nothing to the commitment. Returns the root and whether a commitment
// was produced.
func (t *Trace) ExtendAndCommit(ts *Transcript, initials [][]field.Element, terminals []field.Element) (hash.Digest, bool, error) {
	if len(initials) != len(t.tables) {
		return hash.Digest{}, false, fmt.Errorf("got %d initial sets for %d tables", len(initials), len(t.tables))
	}

	t.extLDEs = make([]*core.Matrix, len(t.tables))
	withExtensions := make([]*core.Matrix, 0, len(t.tables))
	for i, table := range t.tables {
		if err := table.Extend(t.challenges, initials[i]); err != nil {
			return hash.Digest{}, false, fmt.Errorf("extending table %s: %w", table.Name(), err)
		}
		if table.ExtensionWidth() == 0 {
			continue
		}
		// Each table interpolates over its own height, so the blowup to
		// the shared codeword length differs per table.
		expansion := t.codewordLen / table.Height()
		lde, err := table.ExtensionLDE(t.cfg.CosetOffset, expansion, t.backend)
		if err != nil {
			return hash.Digest{}, false, fmt.Errorf("extension LDE of table %s: %w", table.Name(), err)
		}
		t.extLDEs[i] = lde
		withExtensions = append(withExtensions, lde)
	}

	t.terminals = terminals
	if len(withExtensions) == 0 {
		ts.AbsorbElements(terminals)
		return hash.Digest{}, false, nil
	}

	t.extJoined = core.Join(withExtensions)
	tree, err := core.NewMerkleTree(t.extJoined.HashRows())
	if err != nil {
		return hash.Digest{}, false, fmt.Errorf("committing extension trace: %w", err)
	}
	t.extTree = tree

	root := tree.Root()
	ts.AbsorbDigest(root)
	ts.AbsorbElements(terminals)

	log.WithField("columns", t.extJoined.NumCols()).Info("committed extension trace")
	return root, true, nil
}

// CommitComposition samples one weight per constraint, folds every
// quotient codeword into the composition codeword, verifies the resulting
// degree bound, and commits the codeword. A degree overflow means some
// constraint does not divide its zerofier, i.e. the trace is invalid.
func (t *Trace) CommitComposition(ts *Transcript, groups []ConstraintGroup) (hash.Digest, error) {
	if len(groups) != len(t.tables) {
		return hash.Digest{}, fmt.Errorf("got %d constraint groups for %d tables", len(groups), len(t.tables))
	}

	t.weights = ts.SampleElements(TotalConstraints(groups))

	codeword, err := t.compositionCodeword(groups)
	if err != nil {
		return hash.Digest{}, err
	}
	t.compositionLDE = codeword

	polys, err := codeword.Clone().IntoPolynomials(t.ldeDomain, t.backend)
	if err != nil {
		return hash.Digest{}, fmt.Errorf("interpolating composition codeword: %w", err)
	}
	t.compositionPolys = polys

	bound := t.compositionDegreeBound(groups)
	degree := polys.ColumnDegrees()[0]
	if degree > bound {
		return hash.Digest{}, fmt.Errorf("composition polynomial has degree %d, bound is %d: constraints unsatisfied", degree, bound)
	}

	tree, err := core.NewMerkleTree(codeword.HashRows())
	if err != nil {
		return hash.Digest{}, fmt.Errorf("committing composition codeword: %w", err)
	}
	t.compositionTree = tree

	root := tree.Root()
	ts.AbsorbDigest(root)

	log.WithFields(log.Fields{
		"degree": degree,
		"bound":  bound,
	}).Info("committed composition polynomial")
	return root, nil
}

func (t *Trace) compositionDegreeBound(groups []ConstraintGroup) int {
	bound := 0
	for i, table := range t.tables {
		b := groups[i].MaxDegree() * (table.Height() - 1)
		if b > bound {
			bound = b
		}
	}
	return bound
}

// OutOfDomainValues carries per-table trace rows evaluated at the
// out-of-domain point and its per-table next-row shift, plus the
// composition value at the point.
type OutOfDomainValues struct {
	// TableRows[i] is table i's base row followed by its extension row,
	// evaluated at z
	TableRows [][]field.Element

	// TableNextRows[i] is the same evaluated at z times the table's own
	// trace domain generator
	TableNextRows [][]field.Element

	CompositionValue field.Element
}

// EvaluateOutOfDomain evaluates every table's interpolants and the
// composition polynomial at z. Valid after CommitComposition.
func (t *Trace) EvaluateOutOfDomain(z field.Element) (*OutOfDomainValues, error) {
	vals := &OutOfDomainValues{
		TableRows:     make([][]field.Element, len(t.tables)),
		TableNextRows: make([][]field.Element, len(t.tables)),
	}
	for i, table := range t.tables {
		domain, err := core.NewDomain(table.Height())
		if err != nil {
			return nil, err
		}
		zNext := z.Mul(domain.Generator)

		row := table.BasePolynomials().EvaluateAt(z)
		nextRow := table.BasePolynomials().EvaluateAt(zNext)
		if ext := table.ExtensionPolynomials(); ext != nil {
			row = append(row, ext.EvaluateAt(z)...)
			nextRow = append(nextRow, ext.EvaluateAt(zNext)...)
		}
		vals.TableRows[i] = row
		vals.TableNextRows[i] = nextRow
	}
	vals.CompositionValue = t.compositionPolys.EvaluateAt(z)[0]
	return vals, nil
}

// BuildQueries samples the query positions from the transcript and opens
// every committed matrix at them. Valid after CommitComposition.
func (t *Trace) BuildQueries(ts *Transcript) (*Queries, error) {
	positions, err := ts.SampleIndices(t.codewordLen, t.cfg.NumQueries)
	if err != nil {
		return nil, err
	}
	return newQueries(positions, t.baseJoined, t.extJoined, t.compositionLDE,
		t.baseTree, t.extTree, t.compositionTree)
}
