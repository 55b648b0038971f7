package comm

import (
	"math"

	"github.com/google/uuid"

	"github.com/lsandvik/dist-cg/executor"
	"github.com/lsandvik/dist-cg/future"
)

// FlopTime is the virtual time charged per floating-point operation.
const FlopTime = 1e-9

// An Op is the combine operator of a reduction.
type Op int

const (
	OpSum Op = iota
	OpMax
)

// combine folds b into a.
func (op Op) combine(a, b float64) float64 {
	switch op {
	case OpSum:
		return a + b
	case OpMax:
		return math.Max(a, b)
	default:
		panic("unknown reduction op")
	}
}

// A Plan is a reduction descriptor: the participants and combine operator
// of a collective, with the combine tree fixed at setup time. One Plan is
// shared by all partitions and reused across iterations; successive
// reductions on the same plan are told apart by sequence numbers.
type Plan struct {
	// ID tags this plan's traffic on the wire.
	ID uuid.UUID

	// Op is the combine operator.
	Op Op

	// Parts is the number of participating partitions.
	Parts int
}

// NewPlan creates a reduction descriptor for a sum or max over all
// partitions. Call it once at setup and hand the same Plan to every
// partition.
func NewPlan(op Op, parts int) *Plan {
	if parts <= 0 {
		panic("reduction plan needs at least one participant")
	}
	return &Plan{ID: uuid.New(), Op: op, Parts: parts}
}

// parent returns the combine-tree parent of a rank, or -1 for the root.
func (p *Plan) parent(rank int) int {
	if rank == 0 {
		return -1
	}
	return (rank - 1) / 2
}

// children returns the combine-tree children of a rank.
func (p *Plan) children(rank int) []int {
	var cs []int
	for _, c := range []int{2*rank + 1, 2*rank + 2} {
		if c < p.Parts {
			cs = append(cs, c)
		}
	}
	return cs
}

// Reduce presents this partition's local scalar to the collective and
// returns the combined value as a deferred scalar. It never blocks: leaves
// push their partial up the tree right away so the combine overlaps with
// whatever the caller does next, and all remaining traffic happens when the
// result is first read.
//
// Every partition must call Reduce for the same plans in the same order,
// and must eventually read each result.
func (p *Plan) Reduce(c *Comm, local float64) *future.Scalar {
	if c.NumParts() != p.Parts {
		panic("reduction plan does not match cluster size")
	}
	seq := c.nextPlanSeq(p.ID)
	parent := p.parent(c.Rank)
	children := p.children(c.Rank)

	if p.Parts == 1 {
		return future.Of(local)
	}

	if len(children) == 0 {
		c.sendReduce(parent, p.ID, seq, local)
		return future.Defer(func(h *executor.Handle) float64 {
			return c.recvReduce(parent, p.ID, seq)
		})
	}

	return future.Defer(func(h *executor.Handle) float64 {
		acc := local
		for _, child := range children {
			acc = p.Op.combine(acc, c.recvReduce(child, p.ID, seq))
		}
		h.Sleep(FlopTime * float64(len(children)))

		if parent >= 0 {
			c.sendReduce(parent, p.ID, seq, acc)
			acc = c.recvReduce(parent, p.ID, seq)
		}
		for _, child := range children {
			c.sendReduce(child, p.ID, seq, acc)
		}
		return acc
	})
}
