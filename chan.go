package coro

import "sync"

// chanWaiter is one pending receive. A coroutine waiter is woken by
// rescheduling its primitive onto its scheduler's dispatch target; a
// waiter outside any coroutine blocks on the native channel instead.
type chanWaiter struct {
	p         *Primitive
	co        *Coroutine
	remaining int
	val       any
	onCancel  func()
	native    chan struct{}
}

// Chan is the coroutine-aware channel: a fixed-capacity value buffer
// with FIFO receivers that suspend cooperatively instead of blocking
// their scheduler's thread. It implements Channel and is what the
// runtime itself uses for join signals, promise bridging and batch
// aggregation; it works just as well as a general awaitable.
//
// Send never blocks. Receive called inside a scheduler-bound
// coroutine suspends that coroutine's primitive and frees the driving
// thread; called anywhere else it blocks the calling goroutine.
type Chan struct {
	mu       sync.Mutex
	buf      []any
	capacity int
	waiters  []*chanWaiter
}

var _ Channel = (*Chan)(nil)

// NewChan creates a channel able to buffer capacity undelivered
// values.
func NewChan(capacity int) *Chan {
	if capacity < 0 {
		capacity = 0
	}
	return &Chan{capacity: capacity}
}

// SendNonblock delivers v to the oldest waiting receiver, or buffers
// it if space remains. It reports whether the value was taken; it
// never blocks.
func (ch *Chan) SendNonblock(v any) bool {
	ch.mu.Lock()
	if len(ch.waiters) > 0 {
		w := ch.waiters[0]
		w.remaining--
		if w.remaining > 0 {
			// counting receive: signal absorbed, waiter stays
			ch.mu.Unlock()
			return true
		}
		ch.waiters = ch.waiters[1:]
		w.val = v
		ch.mu.Unlock()
		ch.wake(w)
		return true
	}
	if len(ch.buf) < ch.capacity {
		ch.buf = append(ch.buf, v)
		ch.mu.Unlock()
		return true
	}
	ch.mu.Unlock()
	return false
}

// Receive blocks until a value is sent and returns it.
func (ch *Chan) Receive() any {
	return ch.ReceiveWithOnCancel(nil)
}

// ReceiveWithOnCancel is Receive, but if the waiting coroutine is
// cancelled mid-wait (via CancelForCoroutine) onCancel runs and the
// receive unblocks early with a nil value.
func (ch *Chan) ReceiveWithOnCancel(onCancel func()) any {
	ch.mu.Lock()
	if len(ch.buf) > 0 {
		v := ch.buf[0]
		ch.buf = ch.buf[1:]
		ch.mu.Unlock()
		return v
	}
	w := ch.enqueueWaiter(1, onCancel)
	ch.mu.Unlock()
	ch.wait(w)
	return w.val
}

// ReceiveN drains n signals before returning. Values already buffered
// count toward n; their payloads are discarded.
func (ch *Chan) ReceiveN(n int) {
	if n <= 0 {
		return
	}
	ch.mu.Lock()
	for n > 0 && len(ch.buf) > 0 {
		ch.buf = ch.buf[1:]
		n--
	}
	if n == 0 {
		ch.mu.Unlock()
		return
	}
	w := ch.enqueueWaiter(n, nil)
	ch.mu.Unlock()
	ch.wait(w)
}

// CancelForCoroutine interrupts a pending receive owned by co: the
// waiter is removed, its onCancel callback runs, and the receive
// unblocks with no delivered value.
func (ch *Chan) CancelForCoroutine(co *Coroutine) {
	if co == nil {
		return
	}
	ch.mu.Lock()
	var w *chanWaiter
	for i, x := range ch.waiters {
		if x.co == co {
			w = x
			ch.waiters = append(ch.waiters[:i], ch.waiters[i+1:]...)
			break
		}
	}
	ch.mu.Unlock()
	if w == nil {
		return
	}
	if w.onCancel != nil {
		w.onCancel()
	}
	w.val = nil
	ch.wake(w)
}

// Len returns the number of buffered values.
func (ch *Chan) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.buf)
}

// enqueueWaiter registers a receive for the calling context. Called
// with ch.mu held.
func (ch *Chan) enqueueWaiter(n int, onCancel func()) *chanWaiter {
	w := &chanWaiter{remaining: n, onCancel: onCancel}
	if p := currentPrimitive(); p != nil && p.Scheduler() != nil {
		w.p = p
		w.co, _ = p.Payload().(*Coroutine)
	} else {
		w.native = make(chan struct{})
	}
	ch.waiters = append(ch.waiters, w)
	return w
}

// wait parks the waiter. A coroutine waiter yields its primitive; the
// wake side reschedules it through its scheduler, so the suspension
// cannot complete before the yield: the wake is posted to the same
// serial target that is currently driving this primitive.
func (ch *Chan) wait(w *chanWaiter) {
	if w.native != nil {
		<-w.native
		return
	}
	w.p.Yield()
}

// wake unparks a waiter whose delivery is complete.
func (ch *Chan) wake(w *chanWaiter) {
	if w.native != nil {
		close(w.native)
		return
	}
	s := w.p.Scheduler()
	s.Target().Dispatch(func() {
		s.Add(w.p)
	})
}
