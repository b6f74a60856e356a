// Package txq serializes non-blocking transmits on a unit that can only have
// one transfer in flight.
package txq

import (
	"context"
	"sync/atomic"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
)

// DefaultDepth is the number of pending slots when New is given depth <= 0.
const DefaultDepth = core.CallbackListSize

type State uint8

const (
	Idle State = iota
	InFlight
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Draining:
		return "draining"
	}
	return "unknown"
}

// Stats are monotonically increasing counters.
type Stats struct {
	Sent     uint32 // completions observed
	Queued   uint32 // requests parked behind an in-flight transfer
	Full     uint32 // requests refused with queue_full
	Rejected uint32 // queued entries the transport refused while draining
}

// Queue is a single-flight transmit queue. Start forwards a buffer to the
// hardware; the transport later calls Complete from interrupt context.
//
// State machine: Idle -> InFlight on Transmit; InFlight -> Draining on
// Complete; Draining -> InFlight when a pending entry starts, or Idle when
// none is left. Transmits that arrive outside Idle are queued.
type Queue struct {
	g     core.Guard
	start func([]byte) error
	done  func([]byte)

	state State
	cur   []byte
	slots [][]byte
	head  int
	n     int

	idle chan struct{}

	sent, queued, full, rejected atomic.Uint32
}

// New builds a queue with depth pending slots. done, if non-nil, runs with
// each completed buffer before the next pending entry is started.
func New(depth int, start func([]byte) error, done func([]byte)) *Queue {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Queue{
		start: start,
		done:  done,
		slots: make([][]byte, depth),
		idle:  make(chan struct{}, 1),
	}
}

// Transmit starts buf if idle and returns the transport status. Otherwise it
// parks buf and returns errcode.BusyQueued, or errcode.QueueFull when every
// slot is taken (buf is not retained).
func (q *Queue) Transmit(buf []byte) error {
	q.g.Lock()
	if q.state != Idle {
		err := q.enqueueLocked(buf)
		q.g.Unlock()
		return err
	}
	q.state, q.cur = InFlight, buf
	q.g.Unlock()
	return q.launch(buf)
}

// TransmitBlocking waits until the queue is idle, then starts buf. It never
// queues.
func (q *Queue) TransmitBlocking(ctx context.Context, buf []byte) error {
	for {
		q.g.Lock()
		if q.state == Idle {
			q.state, q.cur = InFlight, buf
			q.g.Unlock()
			return q.launch(buf)
		}
		q.g.Unlock()
		select {
		case <-q.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) enqueueLocked(buf []byte) error {
	if q.n == len(q.slots) {
		q.full.Add(1)
		return errcode.QueueFull
	}
	q.slots[(q.head+q.n)%len(q.slots)] = buf
	q.n++
	q.queued.Add(1)
	return errcode.BusyQueued
}

// launch must be called without the guard held: a transport may complete
// synchronously from inside start.
func (q *Queue) launch(buf []byte) error {
	if err := q.start(buf); err != nil {
		q.g.Lock()
		q.state, q.cur = Draining, nil
		q.g.Unlock()
		q.drain()
		return err
	}
	return nil
}

// Complete is the transmit-complete notify. Calls made while nothing is in
// flight are ignored.
func (q *Queue) Complete() {
	q.g.Lock()
	if q.state != InFlight {
		q.g.Unlock()
		return
	}
	buf := q.cur
	q.state, q.cur = Draining, nil
	q.g.Unlock()

	q.sent.Add(1)
	if q.done != nil {
		q.done(buf)
	}
	q.drain()
}

// drain starts the oldest pending entry and settles in Idle when the queue
// is empty. An entry the transport refuses is counted in Stats.Rejected and
// the next one is tried, rather than leaving the queue idle with entries
// still pending.
func (q *Queue) drain() {
	for {
		q.g.Lock()
		if q.n == 0 {
			q.state = Idle
			q.g.Unlock()
			select {
			case q.idle <- struct{}{}:
			default:
			}
			return
		}
		buf := q.slots[q.head]
		q.slots[q.head] = nil
		q.head = (q.head + 1) % len(q.slots)
		q.n--
		q.state, q.cur = InFlight, buf
		q.g.Unlock()

		if err := q.start(buf); err == nil {
			return
		}
		q.rejected.Add(1)
		q.g.Lock()
		q.state, q.cur = Draining, nil
		q.g.Unlock()
	}
}

// Reset drops pending entries and returns to Idle. Call it only after the
// transport has been stopped.
func (q *Queue) Reset() {
	q.g.Lock()
	for i := range q.slots {
		q.slots[i] = nil
	}
	q.head, q.n = 0, 0
	q.state, q.cur = Idle, nil
	q.g.Unlock()
	select {
	case q.idle <- struct{}{}:
	default:
	}
}

func (q *Queue) State() State {
	q.g.Lock()
	defer q.g.Unlock()
	return q.state
}

func (q *Queue) Pending() int {
	q.g.Lock()
	defer q.g.Unlock()
	return q.n
}

func (q *Queue) Stats() Stats {
	return Stats{
		Sent:     q.sent.Load(),
		Queued:   q.queued.Load(),
		Full:     q.full.Load(),
		Rejected: q.rejected.Load(),
	}
}
