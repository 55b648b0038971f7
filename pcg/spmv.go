package pcg

import (
	"fmt"

	"github.com/lsandvik/dist-cg/comm"
)

// ExchangeHalo refreshes v's ghost slots with the current values of the
// owning partitions, one transfer per neighbor.
//
// Sends never block. The receive side only waits on this partition's own
// inbound transfers, so an operation that needs ghost data stalls on
// exactly the neighbors it depends on and nothing else.
func ExchangeHalo(cx *Ctx, a *SparseMatrix, v *Vector) {
	if len(a.Neighbors) == 0 {
		return
	}
	if v.Cols < a.Cols {
		panic(fmt.Sprintf("vector has %d ghost slots but the matrix needs %d",
			v.Cols-v.Rows, a.NumGhosts()))
	}
	t0 := cx.now()

	seq := cx.Comm.NextHaloSeq()
	vals := v.Full()
	for ni, nb := range a.Neighbors {
		buf := make([]float64, len(a.SendIdx[ni]))
		for j, idx := range a.SendIdx[ni] {
			buf[j] = vals[idx]
		}
		cx.Comm.SendHalo(nb, seq, buf)
	}
	for ni, nb := range a.Neighbors {
		in := cx.Comm.RecvHalo(nb, seq)
		if len(in) != len(a.RecvIdx[ni]) {
			panic(fmt.Sprintf("halo transfer from rank %d has %d values, want %d",
				nb, len(in), len(a.RecvIdx[ni])))
		}
		for j, slot := range a.RecvIdx[ni] {
			v.data[slot] = in[j]
		}
	}

	cx.addTime(TimeHalo, cx.now()-t0)
}

// SPMV computes y = A*x over the owned rows. If the matrix references
// off-partition columns, x's ghosts are refreshed first. Each row is
// accumulated in stored nonzero order; there is no reassociation.
func SPMV(cx *Ctx, a *SparseMatrix, x, y *Vector) {
	ExchangeHalo(cx, a, x)

	xs := x.Full()
	ys := y.Owned()
	nnz := 0
	for i := 0; i < a.Rows; i++ {
		cols, vals := a.Col[i], a.Val[i]
		var sum float64
		for j, c := range cols {
			sum += vals[j] * xs[c]
		}
		ys[i] = sum
		nnz += len(cols)
	}
	cx.H.Sleep(comm.FlopTime * float64(2*nnz))
}
