package executor

import (
	"math/rand"
	"sync"
)

// A Node is a machine in the simulated cluster. In the solver each
// partition runs on its own node.
type Node struct {
	unused int
}

// NewNode creates a new, unique Node.
func NewNode() *Node {
	return &Node{}
}

// Port creates a new Port attached to the Node.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// A Port is an endpoint for communication on a Node. Messages are sent from
// Ports and received on Ports.
type Port struct {
	// The Node to which the Port is attached.
	Node *Node

	// A stream of *Message objects.
	Incoming *EventStream
}

// Recv blocks until the next message arrives on the port.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is a chunk of data in flight between two ports.
//
// Size is the payload size in bytes; networks use it to model transfer
// time.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}
	Size    float64
}

// A Network decides when messages sent between nodes arrive.
type Network interface {
	// Send delivers message objects to their destination ports'
	// incoming streams. It never blocks the sender; a consumer
	// waiting on the data polls its own port.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork delivers every message after an independent random delay.
// It is only useful for stress-testing ordering assumptions.
type RandomNetwork struct{}

// Send sends the messages with random delays.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64())
	}
}

// A LinkNetwork models point-to-point links with a fixed per-message
// latency and a finite transfer rate. Messages bound for the same
// destination share its inbound link and are delivered in send order.
type LinkNetwork struct {
	// Latency is added to every message's transfer time.
	Latency float64

	// Rate is the link bandwidth in bytes per virtual second.
	Rate float64

	mu   sync.Mutex
	busy map[*Node]float64
}

// NewLinkNetwork creates a LinkNetwork with the given latency and rate.
func NewLinkNetwork(latency, rate float64) *LinkNetwork {
	return &LinkNetwork{
		Latency: latency,
		Rate:    rate,
		busy:    map[*Node]float64{},
	}
}

// Send schedules the messages for in-order delivery at their destinations.
func (l *LinkNetwork) Send(h *Handle, msgs ...*Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := h.Time()
	for _, msg := range msgs {
		dst := msg.Dest.Node
		transfer := l.Latency + msg.Size/l.Rate

		// The destination link is occupied until its previously
		// scheduled deliveries complete.
		start := now
		if t, ok := l.busy[dst]; ok && t > start {
			start = t
		}
		arrival := start + transfer
		l.busy[dst] = arrival
		h.Schedule(msg.Dest.Incoming, msg, arrival-now)
	}
}
