// Package executor provides the virtual-time executor that runs the
// per-partition goroutines of a simulated cluster. Partitions issue work,
// exchange messages through a Network, and suspend only when they poll for
// data they depend on; a global EventLoop advances a virtual clock so that
// communication and compute costs are measurable without real timing.
package executor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// An EventStream is a uni-directional mailbox for events delivered through
// an EventLoop.
//
// A stream must only be used with the loop that created it.
type EventStream struct {
	loop   *EventLoop
	queued []interface{}
}

// An Event is a message received on some EventStream.
type Event struct {
	Message interface{}
	Stream  *EventStream
}

// A Timer is a single delivery scheduled at a point in the virtual future.
type Timer struct {
	deadline float64
	event    *Event
}

// Time returns the virtual time at which the timer fires.
//
// While the loop's clock is below this value the timer is guaranteed not to
// have fired yet.
func (t *Timer) Time() float64 {
	return t.deadline
}

// A Handle is one goroutine's access point to an EventLoop. Handles must
// not be shared between goroutines.
type Handle struct {
	*EventLoop

	// Non-nil only while the goroutine is polling.
	waitStreams []*EventStream
	waitCh      chan<- *Event
}

// Poll suspends the caller until an event arrives on any of the given
// streams. Queued events are consumed first, in argument order.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	ch := make(chan *Event, 1)
	h.lockedSched(func() {
		if h.waitStreams != nil {
			panic("Handle is shared between goroutines")
		}
		for _, s := range streams {
			if len(s.queued) > 0 {
				msg := s.queued[0]
				essentials.OrderedDelete(&s.queued, 0)
				ch <- &Event{Message: msg, Stream: s}
				return
			}
		}
		h.waitStreams = streams
		h.waitCh = ch
	})
	return <-ch
}

// Schedule arranges for msg to be delivered on stream after delay virtual
// seconds.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream belongs to a different EventLoop")
	}
	var timer *Timer
	h.locked(func() {
		timer = &Timer{
			deadline: h.clock + delay,
			event:    &Event{Message: msg, Stream: stream},
		}
		if math.IsInf(timer.deadline, 0) || math.IsNaN(timer.deadline) {
			panic(fmt.Sprintf("invalid deadline: %f", timer.deadline))
		}
		h.timers = append(h.timers, timer)
	})
	return timer
}

// Cancel stops a scheduled timer. Cancelling a timer that already fired has
// no effect.
func (h *Handle) Cancel(t *Timer) {
	h.locked(func() {
		for i, timer := range h.timers {
			if timer == t {
				essentials.UnorderedDelete(&h.timers, i)
			}
		}
	})
}

// Sleep blocks the caller for the given amount of virtual time. It is used
// both for plain waiting and for charging compute cost to the virtual clock.
func (h *Handle) Sleep(delay float64) {
	s := h.Stream()
	h.Schedule(s, nil, delay)
	h.Poll(s)
}

// An EventLoop schedules the events of a simulated cluster and owns its
// virtual clock.
//
// Every goroutine that touches the loop must be started with Go. The loop
// only advances the clock when all of its goroutines are polling, so
// in-progress computations never race with message delivery.
type EventLoop struct {
	mu      sync.Mutex
	timers  []*Timer
	handles []*Handle

	clock float64

	running bool
	wakeCh  chan struct{}
}

// NewEventLoop creates an event loop with its clock at zero.
func NewEventLoop() *EventLoop {
	return &EventLoop{wakeCh: make(chan struct{}, 1)}
}

// Stream creates an EventStream tied to this loop.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// Go starts f in a new goroutine with its own Handle.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.mu.Unlock()
	go func() {
		f(h)
		e.lockedSched(func() {
			for i, handle := range e.handles {
				if handle == h {
					essentials.UnorderedDelete(&e.handles, i)
					return
				}
			}
			panic("cannot free handle that does not exist")
		})
	}()
}

// Run drives the loop until every handle has exited.
//
// Only one goroutine may call Run at a time. Returns an error if the
// remaining goroutines deadlock waiting on each other.
func (e *EventLoop) Run() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		panic("EventLoop is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for range e.wakeCh {
		if cont, err := e.step(); !cont {
			return err
		}
	}

	panic("unreachable")
}

// MustRun is like Run but panics on deadlock.
func (e *EventLoop) MustRun() {
	essentials.Must(e.Run())
}

// Time returns the current virtual time.
func (e *EventLoop) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// locked runs f under the loop lock for state changes that cannot unblock a
// poller.
func (e *EventLoop) locked(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f()
}

// lockedSched is like locked but signals the loop afterwards, for changes
// that may allow scheduling to proceed.
func (e *EventLoop) lockedSched(f func()) {
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		select {
		case e.wakeCh <- struct{}{}:
		default:
		}
	}()
	f()
}

// step delivers the next timer event, if any. The first return value is
// false once the loop cannot make further progress.
func (e *EventLoop) step() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.handles) == 0 {
		return false, nil
	}

	for _, h := range e.handles {
		if len(h.waitStreams) == 0 {
			// A goroutine is computing in real time; the clock must
			// not advance under it.
			return true, nil
		}
	}

	for len(e.timers) > 0 {
		// Pick among equal deadlines at random so that simultaneous
		// deliveries have no deterministic order.
		order := rand.Perm(len(e.timers))

		next := order[0]
		for _, i := range order[1:] {
			if e.timers[i].deadline < e.timers[next].deadline {
				next = i
			}
		}
		timer := e.timers[next]

		essentials.UnorderedDelete(&e.timers, next)
		e.clock = math.Max(e.clock, timer.deadline)
		if e.deliver(timer.event) {
			return true, nil
		}
	}

	return false, errors.New("deadlock: all Handles are polling")
}

func (e *EventLoop) deliver(event *Event) bool {
	// Randomize receiver choice so competing pollers on one stream are not
	// served in a deterministic order.
	order := rand.Perm(len(e.handles))
	for _, i := range order {
		h := e.handles[i]
		for _, s := range h.waitStreams {
			if s == event.Stream {
				h.waitCh <- event
				h.waitCh = nil
				h.waitStreams = nil
				return true
			}
		}
	}
	event.Stream.queued = append(event.Stream.queued, event.Message)
	return false
}
