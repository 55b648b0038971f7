package pcg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsandvik/dist-cg/grid"
)

func TestHierarchyShape(t *testing.T) {
	g := grid.NewGeometry(32, 4, 1)
	ml := NewLaplace1D(g, 3)

	require.Len(t, ml.Levels, 3)
	assert.Equal(t, 8, ml.Levels[0].A.Rows)
	assert.Equal(t, 4, ml.Levels[1].A.Rows)
	assert.Equal(t, 2, ml.Levels[2].A.Rows)

	for _, level := range ml.Levels[:2] {
		require.NotNil(t, level.Xc)
		for c, f := range level.F2C {
			assert.Equal(t, 2*c, f)
		}
	}
	assert.Nil(t, ml.Levels[2].F2C)
}

func TestHierarchyBadDepthPanics(t *testing.T) {
	// 8 rows over 4 partitions cannot support a second level: the coarse
	// grid would leave one row per partition un-halved.
	g := grid.NewGeometry(8, 4, 0)
	assert.NotPanics(t, func() { NewLaplace1D(g, 2) })
	assert.Panics(t, func() { NewLaplace1D(g, 3) })
	assert.Panics(t, func() { NewLaplace1D(g, 0) })
}

// TestMGReducesResidual applies one V-cycle to A*z = r and expects a
// substantially smaller residual than the zero guess.
func TestMGReducesResidual(t *testing.T) {
	const rows = 32
	for _, parts := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("Parts=%d", parts), func(t *testing.T) {
			runCluster(t, parts, func(cx *Ctx, rank int) {
				g := grid.NewGeometry(rows, parts, rank)
				ml := NewLaplace1D(g, 3)
				a := ml.Fine()

				r := NewVector(g, 0)
				z := NewVector(g, a.NumGhosts())
				fillGlobal(r, yval)

				before := residualNorm(cx, a, r, z)
				ml.MG(cx, r, z)
				after := residualNorm(cx, a, r, z)

				assert.Less(t, after, before*0.5,
					"a V-cycle should cut the residual well below the zero guess")
			})
		})
	}
}

// TestMGZeroesInitialGuess checks that MG ignores whatever is in z.
func TestMGZeroesInitialGuess(t *testing.T) {
	const rows = 16
	runCluster(t, 2, func(cx *Ctx, rank int) {
		g := grid.NewGeometry(rows, 2, rank)
		ml := NewLaplace1D(g, 2)
		a := ml.Fine()

		r := NewVector(g, 0)
		fillGlobal(r, xval)

		z1 := NewVector(g, a.NumGhosts())
		z2 := NewVector(g, a.NumGhosts())
		z2.Fill(1e6)

		ml.MG(cx, r, z1)
		ml.MG(cx, r, z2)

		for i := range z1.Owned() {
			assert.InDelta(t, z1.Owned()[i], z2.Owned()[i], 1e-9)
		}
	})
}
