package pcg

import (
	"fmt"
	"math"

	"github.com/lsandvik/dist-cg/comm"
	"github.com/lsandvik/dist-cg/future"
)

// WAXPBY computes w[i] = alpha*x[i] + beta*y[i] over the owned rows
// [0, n). It is purely local: no communication, no reduction. Any of w, x
// and y may alias.
func WAXPBY(cx *Ctx, n int, alpha float64, x *Vector, beta float64, y *Vector, w *Vector) {
	checkLen(n, x, y, w)
	xs, ys, ws := x.Owned(), y.Owned(), w.Owned()
	for i := 0; i < n; i++ {
		ws[i] = alpha*xs[i] + beta*ys[i]
	}
	cx.H.Sleep(comm.FlopTime * float64(3*n))
}

// DotProduct computes the local partial sum of x[i]*y[i] over [0, n) and
// hands it to the cluster-wide sum reduction. The returned scalar is
// deferred; the global value only materializes when it is read.
func DotProduct(cx *Ctx, n int, x, y *Vector) *future.Scalar {
	checkLen(n, x, y)
	xs, ys := x.Owned(), y.Owned()
	var local float64
	for i := 0; i < n; i++ {
		local += xs[i] * ys[i]
	}
	cx.H.Sleep(comm.FlopTime * float64(2*n))
	return cx.Sum.Reduce(cx.Comm, local)
}

// InfNormDiff computes the global infinity norm of x - y as a deferred
// max reduction. It backs residual verification after a solve.
func InfNormDiff(cx *Ctx, n int, x, y *Vector) *future.Scalar {
	checkLen(n, x, y)
	xs, ys := x.Owned(), y.Owned()
	var local float64
	for i := 0; i < n; i++ {
		if d := math.Abs(xs[i] - ys[i]); d > local {
			local = d
		}
	}
	cx.H.Sleep(comm.FlopTime * float64(2*n))
	return cx.Max.Reduce(cx.Comm, local)
}

// checkLen verifies that n rows are available on each operand. Mismatched
// partition lengths must not occur past setup.
func checkLen(n int, vs ...*Vector) {
	for _, v := range vs {
		if n > v.Rows {
			panic(fmt.Sprintf("kernel over %d rows on a %d-row partition", n, v.Rows))
		}
	}
}
