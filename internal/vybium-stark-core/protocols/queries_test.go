package protocols

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/core"
)

func committedMatrix(t *testing.T, numCols, numRows int, seed uint64) (*core.Matrix, *core.MerkleTree) {
	t.Helper()
	cols := make([][]field.Element, numCols)
	state := seed
	for c := range cols {
		cols[c] = make([]field.Element, numRows)
		for i := range cols[c] {
			state = state*6364136223846793005 + 1442695040888963407
			cols[c][i] = field.New(state % field.P)
		}
	}
	m := core.NewMatrix(cols)
	tree, err := core.NewMerkleTree(m.HashRows())
	if err != nil {
		t.Fatalf("NewMerkleTree: %v", err)
	}
	return m, tree
}

func TestQueries(t *testing.T) {
	const numRows = 16
	base, baseTree := committedMatrix(t, 3, numRows, 1)
	ext, extTree := committedMatrix(t, 2, numRows, 2)
	comp, compTree := committedMatrix(t, 1, numRows, 3)

	positions := []int{0, 5, 5, 15}
	queries, err := newQueries(positions, base, ext, comp, baseTree, extTree, compTree)
	if err != nil {
		t.Fatalf("newQueries: %v", err)
	}

	t.Run("honest openings verify", func(t *testing.T) {
		if err := queries.Verify(baseTree.Root(), extTree.Root(), compTree.Root(), true); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	})

	t.Run("opened rows match the matrices", func(t *testing.T) {
		for i, pos := range positions {
			want, err := base.GetRow(pos)
			if err != nil {
				t.Fatalf("GetRow: %v", err)
			}
			for c := range want {
				if !queries.BaseRows[i][c].Equal(want[c]) {
					t.Fatalf("base opening %d column %d diverges", i, c)
				}
			}
		}
	})

	t.Run("tampered value rejected", func(t *testing.T) {
		tampered, err := newQueries(positions, base, ext, comp, baseTree, extTree, compTree)
		if err != nil {
			t.Fatalf("newQueries: %v", err)
		}
		tampered.BaseRows[1][0] = tampered.BaseRows[1][0].Add(field.One)
		if err := tampered.Verify(baseTree.Root(), extTree.Root(), compTree.Root(), true); err == nil {
			t.Fatal("tampered base row verified")
		}
	})

	t.Run("swapped openings rejected", func(t *testing.T) {
		tampered, err := newQueries(positions, base, ext, comp, baseTree, extTree, compTree)
		if err != nil {
			t.Fatalf("newQueries: %v", err)
		}
		tampered.CompositionRows[0], tampered.CompositionRows[3] = tampered.CompositionRows[3], tampered.CompositionRows[0]
		if err := tampered.Verify(baseTree.Root(), extTree.Root(), compTree.Root(), true); err == nil {
			t.Fatal("swapped composition rows verified")
		}
	})

	t.Run("wrong root rejected", func(t *testing.T) {
		if err := queries.Verify(extTree.Root(), extTree.Root(), compTree.Root(), true); err == nil {
			t.Fatal("openings verified against the wrong root")
		}
	})

	t.Run("missing openings rejected", func(t *testing.T) {
		truncated := *queries
		truncated.BaseRows = truncated.BaseRows[:2]
		if err := truncated.Verify(baseTree.Root(), extTree.Root(), compTree.Root(), true); err == nil {
			t.Fatal("incomplete query bundle verified")
		}
	})

	t.Run("missing path rejected", func(t *testing.T) {
		tampered, err := newQueries(positions, base, ext, comp, baseTree, extTree, compTree)
		if err != nil {
			t.Fatalf("newQueries: %v", err)
		}
		tampered.BaseProofs[0] = nil
		if err := tampered.Verify(baseTree.Root(), extTree.Root(), compTree.Root(), true); err == nil {
			t.Fatal("missing authentication path verified")
		}
	})
}

func TestQueriesWithoutExtension(t *testing.T) {
	const numRows = 8
	base, baseTree := committedMatrix(t, 2, numRows, 4)
	comp, compTree := committedMatrix(t, 1, numRows, 5)

	queries, err := newQueries([]int{1, 6}, base, nil, comp, baseTree, nil, compTree)
	if err != nil {
		t.Fatalf("newQueries: %v", err)
	}
	if queries.ExtensionRows != nil {
		t.Fatal("extension openings present without extension columns")
	}
	if err := queries.Verify(baseTree.Root(), hash.Digest{}, compTree.Root(), false); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestNewTraceInfoValidation(t *testing.T) {
	expectPanic := func(t *testing.T, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		fn()
	}

	t.Run("valid shape accepted", func(t *testing.T) {
		info := NewTraceInfo(16, 8, MinTraceLength, []byte("meta"))
		if info.NumColumns() != 24 {
			t.Fatalf("got %d columns, want 24", info.NumColumns())
		}
	})

	t.Run("no base columns", func(t *testing.T) {
		expectPanic(t, func() { NewTraceInfo(0, 8, MinTraceLength, nil) })
	})
	t.Run("too wide", func(t *testing.T) {
		expectPanic(t, func() { NewTraceInfo(200, 56, MinTraceLength, nil) })
	})
	t.Run("too short", func(t *testing.T) {
		expectPanic(t, func() { NewTraceInfo(16, 8, MinTraceLength/2, nil) })
	})
	t.Run("length not a power of two", func(t *testing.T) {
		expectPanic(t, func() { NewTraceInfo(16, 8, MinTraceLength+1, nil) })
	})
	t.Run("oversized metadata", func(t *testing.T) {
		expectPanic(t, func() { NewTraceInfo(16, 8, MinTraceLength, make([]byte, MaxMetaBytes+1)) })
	})
}
