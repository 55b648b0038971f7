package pcg

import (
	"github.com/lsandvik/dist-cg/comm"
	"github.com/lsandvik/dist-cg/executor"
)

// Timing buckets accumulated over a solve, in virtual seconds.
const (
	TimeTotal = iota
	TimeDot
	TimeWAXPBY
	TimeSPMV
	TimeAllReduce
	TimePrecond
	TimeHalo

	NumTimers
)

// A Ctx bundles everything one partition needs to run solver operations:
// its executor handle, its communication context, and the reduction plans
// shared by the cluster.
type Ctx struct {
	H    *executor.Handle
	Comm *comm.Comm

	// Sum and Max are the reduction descriptors for dot products and
	// inf-norm checks, fixed at setup and reused every iteration.
	Sum *comm.Plan
	Max *comm.Plan

	// times receives per-phase timing while a solve is running.
	times *[NumTimers]float64
}

// addTime charges dt virtual seconds to a timing bucket, if a solve is
// collecting them.
func (cx *Ctx) addTime(bucket int, dt float64) {
	if cx.times != nil {
		cx.times[bucket] += dt
	}
}

// now returns the current virtual time.
func (cx *Ctx) now() float64 {
	return cx.H.Time()
}
