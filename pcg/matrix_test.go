package pcg

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsandvik/dist-cg/grid"
)

func TestSetRowValidation(t *testing.T) {
	g := grid.NewGeometry(8, 2, 0)
	a := NewSparseMatrix(g)

	assert.Panics(t, func() { a.SetRow(0, []int{0, 1}, []float64{2}) },
		"column/value length mismatch")
	assert.Panics(t, func() { a.SetRow(0, []int{1}, []float64{-1}) },
		"missing diagonal")
	assert.Panics(t, func() { a.SetRow(0, []int{0}, []float64{0}) },
		"zero diagonal")

	a.SetRow(0, []int{0, 1}, []float64{2, -1})
	assert.Equal(t, 2.0, a.Diag[0])
}

// TestSetupHaloPlansAgree builds every partition's block independently and
// checks that each pair of neighbors derives matching transfer lists: the
// rows one side gathers are exactly the global columns the other side
// expects, in the same order.
func TestSetupHaloPlansAgree(t *testing.T) {
	const rows = 24
	for _, parts := range []int{2, 3, 4, 8} {
		t.Run(fmt.Sprintf("Parts=%d", parts), func(t *testing.T) {
			mats := make([]*SparseMatrix, parts)
			for rank := 0; rank < parts; rank++ {
				mats[rank] = laplace1D(grid.NewGeometry(rows, parts, rank))
			}

			for rank, a := range mats {
				for ni, nb := range a.Neighbors {
					// Globals this partition sends towards nb.
					var sendGlobals []int
					for _, idx := range a.SendIdx[ni] {
						sendGlobals = append(sendGlobals, a.Geom.LocalToGlobal(idx))
					}

					// Globals nb expects from this partition: its off-rank
					// columns owned here, sorted, the same order its ghost
					// slots were assigned in.
					peer := mats[nb]
					wantSet := map[int]bool{}
					for _, cols := range peer.GlobalCols {
						for _, c := range cols {
							if peer.Geom.RankOfRow(c) == rank {
								wantSet[c] = true
							}
						}
					}
					want := make([]int, 0, len(wantSet))
					for c := range wantSet {
						want = append(want, c)
					}
					sort.Ints(want)

					assert.Equal(t, want, sendGlobals,
						"rank %d -> %d transfer list", rank, nb)

					pi := indexOf(peer.Neighbors, rank)
					require.GreaterOrEqual(t, pi, 0, "peer is missing the neighbor")
					assert.Len(t, peer.RecvIdx[pi], len(sendGlobals))
				}
			}
		})
	}
}

func TestSetupHaloGhostSlots(t *testing.T) {
	// A middle partition of the tridiagonal stencil sees one external
	// column per side.
	a := laplace1D(grid.NewGeometry(12, 3, 1))
	assert.Equal(t, 4, a.Rows)
	assert.Equal(t, 6, a.Cols)
	assert.Equal(t, 2, a.NumGhosts())
	assert.Equal(t, []int{0, 2}, a.Neighbors)

	// Boundary partitions have a single neighbor.
	b := laplace1D(grid.NewGeometry(12, 3, 0))
	assert.Equal(t, 1, b.NumGhosts())
	assert.Equal(t, []int{1}, b.Neighbors)

	// Serial matrices need no halo at all.
	s := laplace1D(grid.NewGeometry(12, 1, 0))
	assert.Zero(t, s.NumGhosts())
	assert.Empty(t, s.Neighbors)
}

func indexOf(xs []int, x int) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
