package pcg

import (
	"github.com/lsandvik/dist-cg/comm"
	"github.com/lsandvik/dist-cg/executor"
)

// A Cluster wires up the executor, network, ports and reduction plans for
// a set of partitions. It exists for tests and benchmarks; production
// embeddings assemble the same pieces around their own executor.
type Cluster struct {
	Loop    *executor.EventLoop
	Ports   []*executor.Port
	Network executor.Network

	Sum *comm.Plan
	Max *comm.Plan
}

// NewCluster creates a cluster of the given partition count over a
// LinkNetwork with the given latency and byte rate.
func NewCluster(parts int, latency, rate float64) *Cluster {
	loop := executor.NewEventLoop()
	ports := make([]*executor.Port, parts)
	for i := range ports {
		ports[i] = executor.NewNode().Port(loop)
	}
	return &Cluster{
		Loop:    loop,
		Ports:   ports,
		Network: executor.NewLinkNetwork(latency, rate),
		Sum:     comm.NewPlan(comm.OpSum, parts),
		Max:     comm.NewPlan(comm.OpMax, parts),
	}
}

// Parts returns the number of partitions.
func (cl *Cluster) Parts() int {
	return len(cl.Ports)
}

// Run starts one goroutine per partition, handing each its Ctx, and drives
// the event loop until all of them finish. Returns an error on deadlock.
func (cl *Cluster) Run(fn func(cx *Ctx, rank int)) error {
	for i := 0; i < cl.Parts(); i++ {
		rank := i
		cl.Loop.Go(func(h *executor.Handle) {
			fn(&Ctx{
				H:    h,
				Comm: comm.New(h, rank, cl.Ports, cl.Network),
				Sum:  cl.Sum,
				Max:  cl.Max,
			}, rank)
		})
	}
	return cl.Loop.Run()
}
