// Package comm implements the communication layer of the solver: tagged
// point-to-point transfers between partitions (used for halo exchange) and
// tree-structured scalar reductions exposed as deferred values.
//
// Each partition owns one Comm. All sends are non-blocking; a receive only
// blocks the partition that depends on the data. Messages that arrive while
// a partition is waiting for something else are held and matched later, so
// overlapping exchanges and reductions cannot steal each other's traffic.
package comm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/unixpickle/essentials"

	"github.com/lsandvik/dist-cg/executor"
)

// kind discriminates envelope traffic classes.
type kind int

const (
	kindHalo kind = iota
	kindReduce
)

// An envelope is the payload of every message between partitions.
type envelope struct {
	Kind kind
	From int

	// Plan and Seq identify the collective instance for kindReduce
	// envelopes; Seq alone sequences kindHalo envelopes.
	Plan uuid.UUID
	Seq  int

	Data []float64
}

// A Comm is one partition's view of the cluster interconnect.
type Comm struct {
	Handle  *executor.Handle
	Rank    int
	Ports   []*executor.Port
	Network executor.Network

	held     []*envelope
	haloSeq  int
	planSeqs map[uuid.UUID]int
}

// New creates the communication context for one partition. ports must be
// indexed by rank and shared by all partitions.
func New(h *executor.Handle, rank int, ports []*executor.Port, network executor.Network) *Comm {
	if rank < 0 || rank >= len(ports) {
		panic(fmt.Sprintf("rank %d out of range [0, %d)", rank, len(ports)))
	}
	return &Comm{
		Handle:   h,
		Rank:     rank,
		Ports:    ports,
		Network:  network,
		planSeqs: map[uuid.UUID]int{},
	}
}

// NumParts returns the number of partitions in the cluster.
func (c *Comm) NumParts() int {
	return len(c.Ports)
}

// port returns this partition's own port.
func (c *Comm) port() *executor.Port {
	return c.Ports[c.Rank]
}

// send ships an envelope to the destination rank without blocking.
func (c *Comm) send(dst int, env *envelope) {
	c.Network.Send(c.Handle, &executor.Message{
		Source:  c.port(),
		Dest:    c.Ports[dst],
		Message: env,
		Size:    float64(len(env.Data)*8 + 16),
	})
}

// recv blocks until an envelope matching the predicate arrives. Envelopes
// for other consumers are held aside in arrival order.
func (c *Comm) recv(match func(*envelope) bool) *envelope {
	for i, env := range c.held {
		if match(env) {
			essentials.OrderedDelete(&c.held, i)
			return env
		}
	}
	for {
		env := c.port().Recv(c.Handle).Message.(*envelope)
		if match(env) {
			return env
		}
		c.held = append(c.held, env)
	}
}

// NextHaloSeq returns the sequence number for the next halo exchange. All
// partitions run the same program, so lockstep calls agree on numbering.
func (c *Comm) NextHaloSeq() int {
	seq := c.haloSeq
	c.haloSeq++
	return seq
}

// SendHalo ships boundary values to a neighbor as part of exchange seq.
func (c *Comm) SendHalo(dst, seq int, vals []float64) {
	c.send(dst, &envelope{
		Kind: kindHalo,
		From: c.Rank,
		Seq:  seq,
		Data: vals,
	})
}

// RecvHalo blocks until the halo transfer from the given neighbor for
// exchange seq arrives, and returns its values.
func (c *Comm) RecvHalo(from, seq int) []float64 {
	env := c.recv(func(e *envelope) bool {
		return e.Kind == kindHalo && e.From == from && e.Seq == seq
	})
	return env.Data
}

// nextPlanSeq sequences successive reductions on one plan.
func (c *Comm) nextPlanSeq(plan uuid.UUID) int {
	seq := c.planSeqs[plan]
	c.planSeqs[plan] = seq + 1
	return seq
}

// sendReduce ships a scalar belonging to a collective instance.
func (c *Comm) sendReduce(dst int, plan uuid.UUID, seq int, val float64) {
	c.send(dst, &envelope{
		Kind: kindReduce,
		From: c.Rank,
		Plan: plan,
		Seq:  seq,
		Data: []float64{val},
	})
}

// recvReduce blocks until the collective scalar from a specific rank
// arrives.
func (c *Comm) recvReduce(from int, plan uuid.UUID, seq int) float64 {
	env := c.recv(func(e *envelope) bool {
		return e.Kind == kindReduce && e.From == from && e.Plan == plan && e.Seq == seq
	})
	return env.Data[0]
}
