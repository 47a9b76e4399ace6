package coro

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// A Coroutine wraps a Primitive with structured-concurrency
// bookkeeping: a parent/child tree, cooperative cancellation that
// cascades to children and interrupts pending channel waits, join
// synchronization, and string-keyed parameters. Each Coroutine
// exclusively owns its primitive; the primitive's payload slot holds
// the non-owning back-reference used to resolve Current.
//
// The parent/child set and the pending-await channel are mutated only
// while executing on the coroutine's dispatch target, so they need no
// locking; the finished flag, join signals, last error and parameters
// may be touched from any goroutine and are guarded by a mutex.
type Coroutine struct {
	id    uuid.UUID
	p     *Primitive
	queue Dispatcher
	block func(*Coroutine)

	mu       sync.Mutex
	finished bool
	joiners  []func()
	onFinish func()
	lastErr  error
	params   map[string]any

	cancelled atomic.Bool
	resumed   atomic.Bool

	// dispatch-target confined
	parent    *Coroutine
	children  []*Coroutine
	awaitChan Channel
}

// NewCoroutine builds a coroutine bound to a block and a dispatch
// target. The stack size follows the primitive's sizing rules (zero
// selects the default). The coroutine does not start until Resume,
// ResumeNow or AddToScheduler is called.
func NewCoroutine(block func(*Coroutine), queue Dispatcher, stackSize int) *Coroutine {
	if block == nil {
		panic("coro: NewCoroutine with nil block")
	}
	if queue == nil {
		panic("coro: NewCoroutine with nil dispatcher")
	}
	co := &Coroutine{
		id:    uuid.New(),
		queue: queue,
		block: block,
	}
	co.p = NewPrimitive(co.execute, stackSize)
	co.p.SetPayload(co, func(any) { co.release() })
	return co
}

// Launch creates a coroutine on the dispatch target and resumes it.
func Launch(queue Dispatcher, block func(*Coroutine)) *Coroutine {
	co := NewCoroutine(block, queue, 0)
	co.Resume()
	return co
}

// LaunchNow is Launch with ResumeNow semantics: the start runs inline
// when the caller is already a coroutine on the same target.
func LaunchNow(queue Dispatcher, block func(*Coroutine)) *Coroutine {
	co := NewCoroutine(block, queue, 0)
	co.ResumeNow()
	return co
}

// Current returns the coroutine whose primitive is running on the
// calling goroutine, or nil outside any coroutine (including inside a
// bare primitive that carries no coroutine object).
func Current() *Coroutine {
	p := currentPrimitive()
	if p == nil {
		return nil
	}
	co, _ := p.Payload().(*Coroutine)
	return co
}

// IsActive reports whether the calling coroutine is still active,
// that is, not cancelled. It returns ErrOutsideCoroutine when no
// coroutine is running on the calling goroutine, since the notion is
// meaningless there.
func IsActive() (bool, error) {
	co := Current()
	if co == nil {
		return false, ErrOutsideCoroutine
	}
	return !co.Cancelled(), nil
}

// ID returns the coroutine's unique identity.
func (co *Coroutine) ID() uuid.UUID {
	return co.id
}

func (co *Coroutine) String() string {
	return fmt.Sprintf("coroutine(%s %s)", co.id, co.p.Status())
}

// Queue returns the dispatch target the coroutine is bound to.
func (co *Coroutine) Queue() Dispatcher {
	return co.queue
}

// Primitive returns the underlying primitive.
func (co *Coroutine) Primitive() *Primitive {
	return co.p
}

// Cancelled reports whether the coroutine has been cancelled.
func (co *Coroutine) Cancelled() bool {
	return co.cancelled.Load()
}

// Finished reports whether the block has run to completion.
func (co *Coroutine) Finished() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.finished
}

// LastError returns the most recent failure observed by the
// coroutine: a rejected promise captured during Await, or a panic
// that escaped the block. Cancellation is not an error and never
// appears here.
func (co *Coroutine) LastError() error {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.lastErr
}

func (co *Coroutine) setLastError(err error) {
	co.mu.Lock()
	co.lastErr = err
	co.mu.Unlock()
}

// OnFinish registers a callback invoked after the block completes,
// before join signals fire. Must be set before the coroutine starts.
func (co *Coroutine) OnFinish(fn func()) {
	co.mu.Lock()
	co.onFinish = fn
	co.mu.Unlock()
}

// SetParam stores a string-keyed parameter on the coroutine.
// Last write wins.
func (co *Coroutine) SetParam(key string, value any) {
	co.mu.Lock()
	if co.params == nil {
		co.params = make(map[string]any)
	}
	co.params[key] = value
	co.mu.Unlock()
}

// Param returns the parameter stored under key, or nil.
func (co *Coroutine) Param(key string) any {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.params[key]
}

// SetParam stores a parameter scoped to the currently running
// coroutine. It returns ErrOutsideCoroutine when none is running.
func SetParam(key string, value any) error {
	co := Current()
	if co == nil {
		return ErrOutsideCoroutine
	}
	co.SetParam(key, value)
	return nil
}

// Param reads a parameter scoped to the currently running coroutine.
func Param(key string) (any, error) {
	co := Current()
	if co == nil {
		return nil, ErrOutsideCoroutine
	}
	return co.Param(key), nil
}

// Resume starts the coroutine by posting it onto its dispatch target.
// If the caller is itself a coroutine on the same target, the new
// coroutine is registered as its structured child before starting, so
// cancellation of the caller will cascade to it. Repeated calls are
// no-ops.
func (co *Coroutine) Resume() {
	if co.resumed.Swap(true) {
		return
	}
	co.adoptParent()
	co.queue.Dispatch(co.start)
}

// ResumeNow is Resume, but when the caller is already a coroutine on
// the same dispatch target the start runs synchronously instead of
// being posted: the new coroutine is enqueued and the caller yields
// through the scheduler loop, which drains both in FIFO order.
func (co *Coroutine) ResumeNow() {
	if co.resumed.Swap(true) {
		return
	}
	parent := co.adoptParent()
	if parent != nil {
		co.start()
		return
	}
	co.queue.Dispatch(co.start)
}

// AddToScheduler enqueues the coroutine on its target's scheduler
// without the parent/child linkage step; used for independent
// top-level tasks.
func (co *Coroutine) AddToScheduler() {
	if co.resumed.Swap(true) {
		return
	}
	co.queue.Dispatch(func() {
		SchedulerFor(co.queue).Add(co.p)
	})
}

// adoptParent links the coroutine under the caller when the caller is
// a coroutine executing on the same dispatch target. The edge is
// taken synchronously at the launch call site, so concurrent launches
// on a shared target can never link unrelated coroutines.
func (co *Coroutine) adoptParent() *Coroutine {
	cur := Current()
	if cur == nil || cur == co || cur.queue != co.queue {
		return nil
	}
	co.parent = cur
	cur.children = append(cur.children, co)
	return cur
}

func (co *Coroutine) start() {
	SchedulerFor(co.queue).schedule(co.p)
}

// execute is the primitive entry: run the block, capture an escaping
// panic as the last error, then finish in a fixed order: mark
// finished, finish callback, join signals, detach from the parent.
func (co *Coroutine) execute() {
	defer co.complete()
	defer func() {
		if r := recover(); r != nil {
			co.setLastError(newPanicError(r))
		}
	}()
	co.block(co)
}

func (co *Coroutine) complete() {
	co.mu.Lock()
	co.finished = true
	finish := co.onFinish
	joiners := co.joiners
	co.joiners = nil
	co.mu.Unlock()
	if finish != nil {
		finish()
	}
	for _, j := range joiners {
		j()
	}
	if co.parent != nil {
		co.parent.removeChild(co)
		co.parent = nil
	}
}

func (co *Coroutine) removeChild(child *Coroutine) {
	for i, c := range co.children {
		if c == child {
			co.children = append(co.children[:i], co.children[i+1:]...)
			return
		}
	}
}

// Cancel requests cooperative cancellation. The request is posted
// onto the coroutine's dispatch target, where a snapshot of the
// current children is cancelled depth-first before the coroutine's
// own flag is set; a receive the coroutine is currently blocked on is
// unblocked early. Cancel is idempotent and never forcibly unwinds a
// running block: the block observes cancellation through IsActive or
// a nil await result.
func (co *Coroutine) Cancel() {
	co.queue.Dispatch(co.cancelOnTarget)
}

func (co *Coroutine) cancelOnTarget() {
	if co.cancelled.Load() {
		return
	}
	children := make([]*Coroutine, len(co.children))
	copy(children, co.children)
	for _, child := range children {
		child.cancelOnTarget()
	}
	co.cancelled.Store(true)
	co.p.Cancel()
	if ch := co.awaitChan; ch != nil {
		ch.CancelForCoroutine(co)
	}
}

// Join blocks the caller until the coroutine finishes; it returns
// immediately if it already has. Multiple joiners may wait on the
// same coroutine and all observe completion. Inside a coroutine the
// wait suspends cooperatively; outside it blocks the goroutine.
func (co *Coroutine) Join() {
	sig := NewChan(1)
	co.mu.Lock()
	if co.finished {
		co.mu.Unlock()
		return
	}
	co.joiners = append(co.joiners, func() {
		sig.SendNonblock(struct{}{})
	})
	co.mu.Unlock()
	sig.Receive()
}

// CancelAndJoin cancels the coroutine and waits for it to finish. The
// join signal is registered before cancellation is issued, under the
// same finished check, so completion and cancellation cannot race
// past the waiter.
func (co *Coroutine) CancelAndJoin() {
	sig := NewChan(1)
	co.mu.Lock()
	finished := co.finished
	if !finished {
		co.joiners = append(co.joiners, func() {
			sig.SendNonblock(struct{}{})
		})
	}
	co.mu.Unlock()
	co.Cancel()
	if !finished {
		sig.Receive()
	}
}

// release is the primitive's payload destructor: it severs state the
// closed primitive no longer needs.
func (co *Coroutine) release() {
	co.awaitChan = nil
	co.mu.Lock()
	co.params = nil
	co.mu.Unlock()
}
