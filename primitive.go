package coro

import "sync/atomic"

// Status is the lifecycle state of a Primitive. The only reachable
// transitions are Ready -> Running -> (Suspended <-> Running)* -> Dead.
type Status int32

const (
	// StatusReady means the primitive has never run; no execution
	// context or stack exists yet.
	StatusReady Status = iota
	// StatusRunning means control is currently inside the primitive.
	StatusRunning
	// StatusSuspended means the primitive yielded and is waiting to
	// be resumed where it left off.
	StatusSuspended
	// StatusDead means the entry function returned; the primitive
	// can only be closed.
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusDead:
		return "dead"
	}
	return "invalid"
}

// Stack sizing. The backing stack is owned by the Go runtime and
// grows on demand; the configured size is normalized bookkeeping
// carried by the primitive: rounded up to a 16 KiB boundary and
// clamped to 1 MiB, with 512 KiB as the default.
const (
	DefaultStackSize = 512 << 10
	MaxStackSize     = 1 << 20
	stackSizeAlign   = 16 << 10
)

func normalizeStackSize(n int) int {
	if n <= 0 {
		return DefaultStackSize
	}
	if n > MaxStackSize {
		n = MaxStackSize
	}
	return (n + stackSizeAlign - 1) &^ (stackSizeAlign - 1)
}

// A Primitive is the raw coroutine unit: an entry function, a saved
// execution context, and the lifecycle state machine. Primitives are
// driven explicitly with Resume and Yield; the structured layers
// (Scheduler, Coroutine) are built on top of them.
//
// A primitive belongs to at most one scheduler run queue at a time;
// the prev/next links are owned by that queue.
type Primitive struct {
	entry     func()
	status    atomic.Int32
	stackSize int
	ctx       *execContext
	canceled  atomic.Bool

	// scheduler bookkeeping
	isScheduler bool
	sched       *Scheduler
	prev, next  *Primitive

	// user payload with destructor
	payload     any
	payloadFree func(any)

	perr error
}

// NewPrimitive creates a primitive in the Ready state. No execution
// context or stack is reserved until the first Resume. A stackSize of
// zero selects DefaultStackSize; other values are rounded and clamped
// per the stack sizing rules.
func NewPrimitive(entry func(), stackSize int) *Primitive {
	if entry == nil {
		panic("coro: NewPrimitive with nil entry")
	}
	return &Primitive{
		entry:     entry,
		stackSize: normalizeStackSize(stackSize),
	}
}

// Status returns the primitive's current lifecycle state.
func (p *Primitive) Status() Status {
	return Status(p.status.Load())
}

// StackSize returns the normalized stack size configured for the
// primitive.
func (p *Primitive) StackSize() int {
	return p.stackSize
}

// Cancel sets the primitive's advisory cancellation flag. It never
// interrupts execution by itself; the body must check Canceled.
func (p *Primitive) Cancel() {
	p.canceled.Store(true)
}

// Canceled reports whether Cancel has been called.
func (p *Primitive) Canceled() bool {
	return p.canceled.Load()
}

// Scheduler returns the scheduler the primitive is bound to, or nil.
func (p *Primitive) Scheduler() *Scheduler {
	return p.sched
}

// Resume transfers control into the primitive. A Ready primitive
// materializes its execution context and stack and starts its entry
// function; a Suspended one continues exactly where it yielded.
// Control returns to the caller only when the primitive yields or its
// entry function returns.
//
// Resuming a Running or Dead primitive is a reentrancy or
// use-after-finish bug and panics; it is never silently ignored,
// since switching into a live or torn-down context would corrupt an
// unrelated call stack. A panic that escaped the entry function is
// re-panicked on the resuming side.
func (p *Primitive) Resume() {
	switch p.Status() {
	case StatusReady:
		p.ctx = newExecContext(p.trampoline)
	case StatusSuspended:
		// context already holds the yield point
	case StatusRunning:
		panic("coro: resume of a running coroutine")
	case StatusDead:
		panic("coro: resume of a dead coroutine")
	}
	p.status.Store(int32(StatusRunning))
	p.ctx.switchTo()
	if p.perr != nil {
		panic(p.perr)
	}
}

// Yield suspends the primitive and switches back to whoever resumed
// it. It must be called from inside the primitive's own body.
func (p *Primitive) Yield() {
	if currentPrimitive() != p {
		panic("coro: yield from outside the coroutine")
	}
	p.status.Store(int32(StatusSuspended))
	p.ctx.switchTo()
}

// Yield suspends the coroutine running on the calling goroutine,
// resolved from goroutine-local state. It panics when called outside
// any coroutine body.
func Yield() {
	p := currentPrimitive()
	if p == nil {
		panic("coro: yield outside any coroutine")
	}
	p.Yield()
}

// trampoline runs on the primitive's own goroutine. It publishes the
// goroutine-local mapping, runs the entry function, captures any
// escaping panic, and marks the primitive Dead. The entry function
// never falls off the end of its stack: when trampoline returns, the
// runtime switches control back to the pending Resume.
func (p *Primitive) trampoline() {
	id := goid()
	setRunningPrimitive(id, p)
	defer clearRunningPrimitive(id)
	defer func() {
		if r := recover(); r != nil {
			p.perr = newPanicError(r)
		}
		p.status.Store(int32(StatusDead))
	}()
	p.entry()
}

// Close releases the primitive's resources: the saved execution
// context reference and the user payload, whose destructor runs
// exactly once. It panics unless the primitive is Dead; closing a
// primitive that could still run would free state out from under a
// live context.
func (p *Primitive) Close() {
	if p.Status() != StatusDead {
		panic("coro: close of a non-dead coroutine (status " + p.Status().String() + ")")
	}
	if p.payloadFree != nil {
		p.payloadFree(p.payload)
	}
	p.payload = nil
	p.payloadFree = nil
	p.ctx = nil
	p.prev = nil
	p.next = nil
}

// SetPayload associates an opaque user payload and destructor with
// the primitive. A previously set payload is disposed of first.
func (p *Primitive) SetPayload(v any, free func(any)) {
	if p.payloadFree != nil {
		p.payloadFree(p.payload)
	}
	p.payload = v
	p.payloadFree = free
}

// Payload returns the user payload, or nil.
func (p *Primitive) Payload() any {
	return p.payload
}
