package pcg

import "github.com/lsandvik/dist-cg/comm"

// SymGS applies one symmetric Gauss-Seidel step to A*x = r: a forward
// sweep over the owned rows followed by a backward sweep, each using the
// most recently updated x values within the sweep. Ghost columns are
// refreshed once at entry and read at their exchanged values throughout,
// so partitions smooth their interiors independently.
func SymGS(cx *Ctx, a *SparseMatrix, r, x *Vector) {
	ExchangeHalo(cx, a, x)

	rs := r.Owned()
	xo := x.Owned()
	xs := x.Full()
	nnz := 0

	for i := 0; i < a.Rows; i++ {
		nnz += len(a.Col[i])
		xo[i] = sweepRow(a, rs, xs, i)
	}
	for i := a.Rows - 1; i >= 0; i-- {
		nnz += len(a.Col[i])
		xo[i] = sweepRow(a, rs, xs, i)
	}

	cx.H.Sleep(comm.FlopTime * float64(2*nnz))
}

// sweepRow solves row i for x[i], holding every other entry fixed. The
// stored row includes the diagonal, so its contribution is summed like the
// rest and then backed out.
func sweepRow(a *SparseMatrix, rs, xs []float64, i int) float64 {
	sum := rs[i]
	cols, vals := a.Col[i], a.Val[i]
	for j, c := range cols {
		sum -= vals[j] * xs[c]
	}
	sum += xs[i] * a.Diag[i]
	return sum / a.Diag[i]
}
