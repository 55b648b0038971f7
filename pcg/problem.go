package pcg

import (
	"fmt"

	"github.com/lsandvik/dist-cg/grid"
)

// Default smoother schedule for generated hierarchies. The coarsest level
// gets enough sweeps to behave like a direct solve on small grids.
const (
	defaultPreSmooth    = 1
	defaultPostSmooth   = 1
	defaultCoarseSweeps = 16
)

// NewLaplace1D builds the partitioned multigrid hierarchy for the 1-D
// discrete Laplacian (tridiagonal [-1, 2, -1]) on geom's global row count,
// with the requested number of levels. Each coarser level is the same
// stencil on half the rows, linked by injection at every other point.
//
// The row count must stay evenly divisible across partitions at every
// level; a depth that breaks the split is a configuration error.
func NewLaplace1D(geom *grid.Geometry, levels int) *Hierarchy {
	if levels < 1 {
		panic(fmt.Sprintf("hierarchy needs at least one level, got %d", levels))
	}
	ml := &Hierarchy{
		PreSmooth:    defaultPreSmooth,
		PostSmooth:   defaultPostSmooth,
		CoarseSweeps: defaultCoarseSweeps,
	}

	g := geom
	for lev := 0; lev < levels; lev++ {
		level := &Level{A: laplace1D(g)}
		ml.Levels = append(ml.Levels, level)
		if lev == levels-1 {
			break
		}

		cg := g.Coarsen()
		if cg.LocalRows()*2 != g.LocalRows() {
			panic(fmt.Sprintf("level %d does not halve per-partition rows", lev+1))
		}
		level.F2C = make([]int, cg.LocalRows())
		for c := range level.F2C {
			level.F2C[c] = 2 * c
		}
		level.Axf = NewVector(g, 0)
		level.Rc = NewVector(cg, 0)
		g = cg
	}

	// Coarse scratch ghosts depend on the coarse matrix, so wire Xc after
	// all levels exist.
	for lev, level := range ml.Levels[:len(ml.Levels)-1] {
		coarse := ml.Levels[lev+1].A
		level.Xc = NewVector(coarse.Geom, coarse.NumGhosts())
	}

	return ml
}

// laplace1D assembles one partition's rows of the tridiagonal Laplacian.
func laplace1D(g *grid.Geometry) *SparseMatrix {
	a := NewSparseMatrix(g)
	for i := 0; i < g.LocalRows(); i++ {
		gi := g.LocalToGlobal(i)
		var cols []int
		var vals []float64
		if gi > 0 {
			cols = append(cols, gi-1)
			vals = append(vals, -1)
		}
		cols = append(cols, gi)
		vals = append(vals, 2)
		if gi < g.GlobalRows-1 {
			cols = append(cols, gi+1)
			vals = append(vals, -1)
		}
		a.SetRow(i, cols, vals)
	}
	a.SetupHalo()
	return a
}
