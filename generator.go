package coro

import (
	"errors"
	"fmt"
)

// ErrCanceled is the panic value delivered when a canceled generator is
// resumed or reaches its next yield or suspend point, and the error for
// yielding from a completed generator.
var ErrCanceled = errors.New("coro: coroutine canceled")

// NewGenerator builds a typed producer/consumer pair directly on a
// Primitive, without a scheduler: a paused coroutine driven
// one value at a time by the returned resume function.
//
// fn receives a yield function that returns a value to the caller and
// pauses, and a suspend function that pauses without returning a
// value; both return the value passed to the next resume. resume
// passes a value in and returns the value yielded out, plus whether
// the generator can still produce. cancel poisons the generator: a
// never-resumed body does not run at all, a suspended one panics with
// ErrCanceled at its checkpoint, unwinding its deferred calls, and
// every later resume panics with ErrCanceled.
//
// The type parameters make the exchange strongly typed: In flows from
// resume into the generator, Out flows from yield back out.
func NewGenerator[In, Out any](
	fn func(yield func(Out) In, suspend func() In) Out,
) (resume func(In) (Out, bool), cancel func()) {
	var (
		p        *Primitive
		in       In
		out      Out
		canceled error
	)

	checkpoint := func() In {
		p.Yield()
		if canceled != nil {
			panic(canceled)
		}
		return in
	}

	yield := func(v Out) In {
		if p.Status() == StatusDead {
			panic(ErrCanceled)
		}
		out = v
		return checkpoint()
	}

	suspend := func() In {
		if p.Status() == StatusDead {
			panic(ErrCanceled)
		}
		return checkpoint()
	}

	p = NewPrimitive(func() {
		if canceled == nil {
			out = fn(yield, suspend)
		}
	}, 0)

	resume = func(v In) (Out, bool) {
		if canceled != nil {
			panic(canceled)
		}
		if p.Status() == StatusDead {
			var zero Out
			return zero, false
		}
		in = v
		p.Resume()
		if p.Status() == StatusDead {
			p.Close()
			return out, false
		}
		return out, true
	}

	cancel = func() {
		if p.Status() == StatusDead {
			return
		}
		canceled = fmt.Errorf("%w", ErrCanceled)
		p.Cancel()
		// a Ready body is skipped entirely by the entry guard; a
		// suspended one takes the checkpoint panic. Either way the
		// primitive retires here unless the body parked itself again.
		p.Resume()
		if p.Status() == StatusDead {
			p.Close()
		}
	}

	return resume, cancel
}
