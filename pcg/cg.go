package pcg

import "github.com/lsandvik/dist-cg/future"

// CGData preallocates the vectors one partition needs across CG
// iterations.
type CGData struct {
	R  *Vector // residual
	Z  *Vector // preconditioned residual
	P  *Vector // search direction, with ghost room for SPMV
	AP *Vector // A * p
}

// NewCGData allocates iteration state sized for the given hierarchy.
func NewCGData(ml *Hierarchy) *CGData {
	a := ml.Fine()
	return &CGData{
		R:  NewVector(a.Geom, 0),
		Z:  NewVector(a.Geom, a.NumGhosts()),
		P:  NewVector(a.Geom, a.NumGhosts()),
		AP: NewVector(a.Geom, 0),
	}
}

// Stats reports the outcome of a solve. Reaching MaxIter without meeting
// the tolerance is not an error; Converged distinguishes the two terminal
// states and the caller decides what is acceptable.
type Stats struct {
	Iterations int
	NormR      float64
	NormR0     float64
	Converged  bool

	// Times holds per-phase virtual seconds, indexed by the Time*
	// constants.
	Times [NumTimers]float64
}

// Solve runs preconditioned CG on A*x = b for one partition, where A is
// the finest level of ml. x carries the initial guess in and the
// approximate solution out. Every partition of the cluster must call Solve
// with its own ctx and local blocks.
//
// The scalar recurrences run on deferred values: rtz, pAp and the residual
// norm are tree reductions that only materialize where a concrete number
// is needed, so alpha = rtz/pAp and beta = rtz/oldrtz cost one combined
// wait each, and local kernels overlap the in-flight combines.
func Solve(cx *Ctx, ml *Hierarchy, data *CGData, b, x *Vector, maxIter int, tolerance float64, precondition bool) *Stats {
	a := ml.Fine()
	n := a.Rows
	stats := &Stats{}
	cx.times = &stats.Times
	defer func() { cx.times = nil }()

	tBegin := cx.now()
	r, z, p, ap := data.R, data.Z, data.P, data.AP

	var rtz, oldrtz, pAp, normr *future.Scalar

	// p is x extended with ghost room for the first SPMV.
	CopyVector(x, p)

	t0 := cx.now()
	SPMV(cx, a, p, ap)
	cx.addTime(TimeSPMV, cx.now()-t0)

	// r = b - A*x.
	t0 = cx.now()
	WAXPBY(cx, n, 1.0, b, -1.0, ap, r)
	cx.addTime(TimeWAXPBY, cx.now()-t0)

	t0 = cx.now()
	normr = future.Sqrt(DotProduct(cx, n, r, r))
	cx.addTime(TimeDot, cx.now()-t0)

	stats.NormR0 = read(cx, normr)
	stats.NormR = stats.NormR0

	for k := 1; k <= maxIter && stats.NormR/stats.NormR0 > tolerance; k++ {
		t0 = cx.now()
		if precondition {
			ml.MG(cx, r, z)
		} else {
			CopyVector(r, z)
		}
		cx.addTime(TimePrecond, cx.now()-t0)

		if k == 1 {
			t0 = cx.now()
			WAXPBY(cx, n, 1.0, z, 0.0, z, p)
			cx.addTime(TimeWAXPBY, cx.now()-t0)

			t0 = cx.now()
			rtz = DotProduct(cx, n, r, z)
			cx.addTime(TimeDot, cx.now()-t0)
		} else {
			oldrtz = rtz

			t0 = cx.now()
			rtz = DotProduct(cx, n, r, z)
			cx.addTime(TimeDot, cx.now()-t0)

			beta := read(cx, future.Div(rtz, oldrtz))

			t0 = cx.now()
			WAXPBY(cx, n, 1.0, z, beta, p, p)
			cx.addTime(TimeWAXPBY, cx.now()-t0)
		}

		t0 = cx.now()
		SPMV(cx, a, p, ap)
		cx.addTime(TimeSPMV, cx.now()-t0)

		t0 = cx.now()
		pAp = DotProduct(cx, n, p, ap)
		cx.addTime(TimeDot, cx.now()-t0)

		alpha := read(cx, future.Div(rtz, pAp))

		// x += alpha*p, r -= alpha*Ap.
		t0 = cx.now()
		WAXPBY(cx, n, 1.0, x, alpha, p, x)
		WAXPBY(cx, n, 1.0, r, -alpha, ap, r)
		cx.addTime(TimeWAXPBY, cx.now()-t0)

		t0 = cx.now()
		normr = future.Sqrt(DotProduct(cx, n, r, r))
		cx.addTime(TimeDot, cx.now()-t0)

		stats.NormR = read(cx, normr)
		stats.Iterations = k
	}

	stats.Converged = stats.NormR/stats.NormR0 <= tolerance
	stats.Times[TimeTotal] += cx.now() - tBegin
	return stats
}

// read materializes a deferred scalar, charging the wait to the reduction
// bucket.
func read(cx *Ctx, s *future.Scalar) float64 {
	t0 := cx.now()
	v := s.Read(cx.H)
	cx.addTime(TimeAllReduce, cx.now()-t0)
	return v
}
