package coro

import (
	"errors"
	"fmt"
)

var (
	// ErrOutsideCoroutine is returned by operations that are only
	// meaningful inside a running coroutine.
	ErrOutsideCoroutine = errors.New("coro: not called from inside a coroutine")

	// ErrInvalidAwaitable is returned by Await for values that are
	// neither a Channel nor a Promise.
	ErrInvalidAwaitable = errors.New("coro: unsupported awaitable type")
)

// A Channel is the blocking send/receive collaborator coroutines
// await on. Receive suspends the calling coroutine cooperatively
// until a value is sent; CancelForCoroutine interrupts a pending
// receive owned by a cancelled coroutine so it unblocks early with no
// value. Implementations must be safe for cross-thread use.
type Channel interface {
	// SendNonblock delivers a value if a receiver is waiting or
	// buffer space remains; it reports whether the value was taken.
	SendNonblock(v any) bool
	// Receive blocks until a value is sent. Inside a coroutine the
	// primitive is suspended; outside, the goroutine blocks.
	Receive() any
	// ReceiveWithOnCancel is Receive, but invokes onCancel and
	// unblocks with a nil value if the waiting coroutine is
	// cancelled mid-wait.
	ReceiveWithOnCancel(onCancel func()) any
	// ReceiveN drains n signals before returning, counting buffered
	// values toward n.
	ReceiveN(n int)
	// CancelForCoroutine interrupts a pending receive owned by co.
	CancelForCoroutine(co *Coroutine)
}

// A Promise bridges callback-style asynchronous results into
// awaitable values. Then and Catch attach continuations; Cancel
// abandons the pending operation when the awaiting coroutine is
// cancelled first.
type Promise interface {
	Then(onSuccess func(v any))
	Catch(onFailure func(err error))
	Cancel()
}

// Await suspends the currently running coroutine until the awaitable
// produces a value. See Coroutine.Await.
func Await(awaitable any) (any, error) {
	co := Current()
	if co == nil {
		return nil, ErrOutsideCoroutine
	}
	return co.Await(awaitable)
}

// Await suspends the coroutine until the awaitable produces a value.
// The error return reports usage mistakes only: calling from outside
// the coroutine's own body, or an unsupported awaitable type.
//
// A cancelled coroutine gets a nil value immediately, with no error;
// a rejected promise likewise yields a nil value, with the failure
// captured as the coroutine's last error. Callers distinguish the two
// through IsActive and LastError.
func (co *Coroutine) Await(awaitable any) (any, error) {
	if currentPrimitive() != co.p {
		return nil, ErrOutsideCoroutine
	}
	if co.Cancelled() {
		return nil, nil
	}
	switch a := awaitable.(type) {
	case Channel:
		co.setLastError(nil)
		co.awaitChan = a
		v := a.Receive()
		co.awaitChan = nil
		return v, nil
	case Promise:
		return co.awaitPromise(a)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidAwaitable, awaitable)
	}
}

// awaitPromise bridges the promise through a single-slot channel:
// fulfilment forwards the value, rejection captures the error and
// sends a nil sentinel. Cancellation of the coroutine while waiting
// also cancels the promise.
func (co *Coroutine) awaitPromise(pr Promise) (any, error) {
	co.setLastError(nil)
	bridge := NewChan(1)
	pr.Then(func(v any) {
		bridge.SendNonblock(v)
	})
	pr.Catch(func(err error) {
		co.setLastError(err)
		bridge.SendNonblock(nil)
	})
	co.awaitChan = bridge
	v := bridge.ReceiveWithOnCancel(pr.Cancel)
	co.awaitChan = nil
	return v, nil
}

// BatchAwait awaits every element of list from the currently running
// coroutine. See Coroutine.BatchAwait.
func BatchAwait(list []any) ([]any, error) {
	co := Current()
	if co == nil {
		return nil, ErrOutsideCoroutine
	}
	return co.BatchAwait(list)
}

// BatchAwait fans out over the awaitables and collects their outcomes
// in input order, regardless of completion order. Each element is
// awaited by its own structured child coroutine that writes the
// resolved value, or the error it captured, into its pre-assigned
// slot, then signals a counting channel; the caller suspends until
// exactly len(list) signals have arrived.
//
// It returns nil on an empty list or when the coroutine is already
// cancelled; slots whose parent was cancelled mid-flight are left as
// their nil placeholder.
func (co *Coroutine) BatchAwait(list []any) ([]any, error) {
	if currentPrimitive() != co.p {
		return nil, ErrOutsideCoroutine
	}
	if len(list) == 0 || co.Cancelled() {
		return nil, nil
	}
	results := make([]any, len(list))
	done := NewChan(len(list))
	for i, item := range list {
		child := NewCoroutine(func(c *Coroutine) {
			v, err := c.Await(item)
			if !co.Cancelled() {
				switch {
				case err != nil:
					results[i] = err
				case c.LastError() != nil:
					results[i] = c.LastError()
				default:
					results[i] = v
				}
			}
			done.SendNonblock(struct{}{})
		}, co.queue, 0)
		child.ResumeNow()
	}
	co.awaitChan = done
	done.ReceiveN(len(list))
	co.awaitChan = nil
	return results, nil
}
