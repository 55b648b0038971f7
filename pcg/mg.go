package pcg

// A Level is one resolution of the multigrid hierarchy. Every level owns
// its own matrix and scratch vectors; levels are coupled only through the
// F2C injection map, so no two levels ever mutate shared state.
type Level struct {
	A *SparseMatrix

	// F2C maps each coarse local row to the fine local row it injects
	// into. Nil on the coarsest level.
	F2C []int

	// Scratch for the transition to the next-coarser level: the fine-grid
	// product A*x, and the coarse-grid residual and correction.
	Axf *Vector
	Rc  *Vector
	Xc  *Vector
}

// A Hierarchy is the multigrid preconditioner: an ordered list of levels,
// finest first, built once at setup and read-only during the solve.
type Hierarchy struct {
	Levels []*Level

	// Smoother sweeps before and after each recursion, and at the
	// coarsest level, where enough sweeps stand in for a direct solve.
	PreSmooth    int
	PostSmooth   int
	CoarseSweeps int
}

// Fine returns the finest-level matrix, the one the CG iteration runs on.
func (ml *Hierarchy) Fine() *SparseMatrix {
	return ml.Levels[0].A
}

// MG applies one V-cycle of the preconditioner, overwriting z with an
// approximate solution of A*z = r at the finest level.
func (ml *Hierarchy) MG(cx *Ctx, r, z *Vector) {
	ml.cycle(cx, 0, r, z)
}

func (ml *Hierarchy) cycle(cx *Ctx, lev int, r, x *Vector) {
	level := ml.Levels[lev]
	x.Zero()

	if lev == len(ml.Levels)-1 {
		for s := 0; s < ml.CoarseSweeps; s++ {
			SymGS(cx, level.A, r, x)
		}
		return
	}

	for s := 0; s < ml.PreSmooth; s++ {
		SymGS(cx, level.A, r, x)
	}

	SPMV(cx, level.A, x, level.Axf)
	restrict(level, r)
	ml.cycle(cx, lev+1, level.Rc, level.Xc)
	prolongate(level, x)

	for s := 0; s < ml.PostSmooth; s++ {
		SymGS(cx, level.A, r, x)
	}
}

// restrict injects the fine-grid residual r - Axf onto the coarse grid.
func restrict(level *Level, r *Vector) {
	rs, axf := r.Owned(), level.Axf.Owned()
	rc := level.Rc.Owned()
	for c, f := range level.F2C {
		rc[c] = rs[f] - axf[f]
	}
}

// prolongate scatters the coarse-grid correction back onto the fine grid
// through the same injection map, transposed.
func prolongate(level *Level, x *Vector) {
	xo := x.Owned()
	xc := level.Xc.Owned()
	for c, f := range level.F2C {
		xo[f] += xc[c]
	}
}
