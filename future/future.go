// Package future provides deferred scalar values for the solver.
//
// A Scalar is a handle to a float64 that may not exist yet: a finished
// value, a pending collective, or a pure function of other deferred
// scalars. Composition never blocks; the pending computation only runs when
// a concrete value is demanded with Read, and the result is memoized.
//
// The CG driver leans on this to chain sqrt and division onto dot-product
// reductions without forcing the reduction to complete early.
package future

import (
	"math"

	"github.com/lsandvik/dist-cg/executor"
)

// A Scalar is a deferred float64.
//
// A Scalar belongs to one partition's logical thread: Read blocks only that
// thread, and once resolved the value is cached, so Read may be called any
// number of times.
type Scalar struct {
	done bool
	val  float64
	wait func(h *executor.Handle) float64
}

// Of returns an already-resolved Scalar.
func Of(v float64) *Scalar {
	return &Scalar{done: true, val: v}
}

// Defer wraps a pending computation. The function runs at most once, on the
// first Read.
func Defer(wait func(h *executor.Handle) float64) *Scalar {
	return &Scalar{wait: wait}
}

// Read materializes the value, blocking the calling goroutine if the
// underlying computation has not completed yet.
func (s *Scalar) Read(h *executor.Handle) float64 {
	if !s.done {
		s.val = s.wait(h)
		s.wait = nil
		s.done = true
	}
	return s.val
}

// Sqrt returns a Scalar for the square root of x, without resolving x.
func Sqrt(x *Scalar) *Scalar {
	if x.done {
		return Of(math.Sqrt(x.val))
	}
	return Defer(func(h *executor.Handle) float64 {
		return math.Sqrt(x.Read(h))
	})
}

// Div returns a Scalar for num/den. Both operands materialize together on
// the first Read of the result.
func Div(num, den *Scalar) *Scalar {
	if num.done && den.done {
		return Of(num.val / den.val)
	}
	return Defer(func(h *executor.Handle) float64 {
		return num.Read(h) / den.Read(h)
	})
}
