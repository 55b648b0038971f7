package pcg

import (
	"fmt"
	"sort"

	"github.com/lsandvik/dist-cg/grid"
)

// A SparseMatrix is one partition's block of rows of the global matrix,
// stored as per-row packed (column, value) pairs. Columns are global
// indices until SetupHalo localizes them; after that the matrix is
// read-only for the whole solve.
type SparseMatrix struct {
	Geom *grid.Geometry

	// Rows is the number of owned rows; Cols is Rows plus the ghost slots
	// needed for off-partition column references. Valid after SetupHalo.
	Rows int
	Cols int

	// Col holds local column indices, Val the matching values, in stored
	// row-major order. Diag caches each row's diagonal value.
	Col  [][]int
	Val  [][]float64
	Diag []float64

	// GlobalCols retains the pre-localization column indices, mostly for
	// verification against a serial assembly of the same matrix.
	GlobalCols [][]int

	// Halo plan: for each neighbor rank, the owned indices to gather and
	// send, and the ghost slots the matching inbound transfer fills. Both
	// sides order entries by global index, so the wire format is implicit.
	Neighbors []int
	SendIdx   [][]int
	RecvIdx   [][]int

	localized bool
}

// NewSparseMatrix creates an empty local matrix block for the partition
// described by geom. Fill every row with SetRow, then call SetupHalo.
func NewSparseMatrix(geom *grid.Geometry) *SparseMatrix {
	rows := geom.LocalRows()
	return &SparseMatrix{
		Geom:       geom,
		Rows:       rows,
		Cols:       rows,
		Col:        make([][]int, rows),
		Val:        make([][]float64, rows),
		Diag:       make([]float64, rows),
		GlobalCols: make([][]int, rows),
	}
}

// SetRow stores the nonzeros of a local row, with global column indices.
// Every row must include a nonzero diagonal entry; the smoother divides by
// it.
func (a *SparseMatrix) SetRow(local int, globalCols []int, vals []float64) {
	if a.localized {
		panic("SetRow after SetupHalo")
	}
	if len(globalCols) != len(vals) {
		panic(fmt.Sprintf("row %d: %d columns but %d values",
			local, len(globalCols), len(vals)))
	}
	diagGlobal := a.Geom.LocalToGlobal(local)
	var diag float64
	for j, c := range globalCols {
		if c == diagGlobal {
			diag = vals[j]
		}
	}
	if diag == 0 {
		panic(fmt.Sprintf("row %d has no nonzero diagonal", local))
	}
	a.GlobalCols[local] = append([]int(nil), globalCols...)
	a.Val[local] = append([]float64(nil), vals...)
	a.Diag[local] = diag
}

// NumGhosts returns the number of ghost slots the matrix needs on any
// vector it multiplies or smooths.
func (a *SparseMatrix) NumGhosts() int {
	return a.Cols - a.Rows
}

// SetupHalo scans the matrix for off-partition column references, assigns
// each distinct external column a ghost slot, and derives the per-neighbor
// transfer lists.
//
// The matrix is structurally symmetric, so if this partition reads a
// column owned by a neighbor, that neighbor reads the corresponding row of
// ours; the send list towards a neighbor is therefore exactly the set of
// owned rows that reference the neighbor's columns, with no setup-time
// message exchange needed.
func (a *SparseMatrix) SetupHalo() {
	if a.localized {
		panic("SetupHalo called twice")
	}

	recvSets := map[int]map[int]bool{}
	sendSets := map[int]map[int]bool{}
	for i := 0; i < a.Rows; i++ {
		rowGlobal := a.Geom.LocalToGlobal(i)
		for _, c := range a.GlobalCols[i] {
			owner := a.Geom.RankOfRow(c)
			if owner == a.Geom.Rank {
				continue
			}
			if recvSets[owner] == nil {
				recvSets[owner] = map[int]bool{}
				sendSets[owner] = map[int]bool{}
			}
			recvSets[owner][c] = true
			sendSets[owner][rowGlobal] = true
		}
	}

	neighbors := make([]int, 0, len(recvSets))
	for nb := range recvSets {
		neighbors = append(neighbors, nb)
	}
	sort.Ints(neighbors)

	globalToLocal := map[int]int{}
	ghost := a.Rows
	a.Neighbors = neighbors
	a.SendIdx = make([][]int, len(neighbors))
	a.RecvIdx = make([][]int, len(neighbors))
	for ni, nb := range neighbors {
		recvCols := sortedKeys(recvSets[nb])
		sendRows := sortedKeys(sendSets[nb])
		for _, c := range recvCols {
			globalToLocal[c] = ghost
			a.RecvIdx[ni] = append(a.RecvIdx[ni], ghost)
			ghost++
		}
		for _, r := range sendRows {
			a.SendIdx[ni] = append(a.SendIdx[ni], a.Geom.GlobalToLocal(r))
		}
	}
	a.Cols = ghost

	for i := 0; i < a.Rows; i++ {
		a.Col[i] = make([]int, len(a.GlobalCols[i]))
		for j, c := range a.GlobalCols[i] {
			if a.Geom.OwnsRow(c) {
				a.Col[i][j] = a.Geom.GlobalToLocal(c)
			} else {
				a.Col[i][j] = globalToLocal[c]
			}
		}
	}
	a.localized = true
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
