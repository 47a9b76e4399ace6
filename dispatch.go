package coro

import "sync"

// A Dispatcher is the external execution context a coroutine is bound
// to: a serial queue that runs posted blocks one at a time, in FIFO
// order, on whatever OS thread is driving it. Two coroutines share a
// logical execution context exactly when their Dispatcher values
// compare equal, so implementations must be comparable (pointer
// receivers are).
//
// The runtime only ever posts blocks; it never blocks the dispatcher
// itself. Thread confinement of scheduler state relies on the
// serial-execution guarantee.
type Dispatcher interface {
	Dispatch(fn func())
}

// SerialQueue is a Dispatcher backed by a single draining goroutine.
// It is the stand-in for a system-provided dispatch queue: blocks run
// strictly one at a time in submission order. Posting never blocks
// the caller, so a block may safely post further blocks to its own
// queue.
type SerialQueue struct {
	name string

	mu    sync.Mutex
	fifo  []func()
	wake  chan struct{}
	quit  chan struct{}
	once  sync.Once
	drain sync.WaitGroup
}

// NewSerialQueue creates a serial queue and starts its draining
// goroutine. The name is only for diagnostics.
func NewSerialQueue(name string) *SerialQueue {
	q := &SerialQueue{
		name: name,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	q.drain.Add(1)
	go q.run()
	return q
}

func (q *SerialQueue) String() string {
	return "serialqueue(" + q.name + ")"
}

// Dispatch posts fn to run asynchronously on the queue, after all
// previously posted blocks. Blocks posted after Stop are dropped.
func (q *SerialQueue) Dispatch(fn func()) {
	q.mu.Lock()
	q.fifo = append(q.fifo, fn)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop shuts the queue down after the blocks already posted have run.
// It is idempotent and does not wait; use Join to wait for the
// draining goroutine to exit.
func (q *SerialQueue) Stop() {
	q.once.Do(func() { close(q.quit) })
}

// Join blocks until the draining goroutine has exited.
func (q *SerialQueue) Join() {
	q.drain.Wait()
}

func (q *SerialQueue) run() {
	defer q.drain.Done()
	for {
		q.runPending()
		select {
		case <-q.wake:
		case <-q.quit:
			q.runPending()
			return
		}
	}
}

func (q *SerialQueue) runPending() {
	for {
		q.mu.Lock()
		if len(q.fifo) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.fifo[0]
		q.fifo = q.fifo[1:]
		q.mu.Unlock()
		fn()
	}
}
