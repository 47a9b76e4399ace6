package coro

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testPromise is a minimal promise collaborator for await tests.
type testPromise struct {
	mu        sync.Mutex
	onSuccess func(any)
	onFailure func(error)
	done      bool
	value     any
	err       error
	cancelled bool
}

func (p *testPromise) Then(f func(any)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done && p.err == nil {
		f(p.value)
		return
	}
	p.onSuccess = f
}

func (p *testPromise) Catch(f func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done && p.err != nil {
		f(p.err)
		return
	}
	p.onFailure = f
}

func (p *testPromise) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = true
}

func (p *testPromise) fulfil(v any) {
	p.mu.Lock()
	f := p.onSuccess
	p.done, p.value = true, v
	p.mu.Unlock()
	if f != nil {
		f(v)
	}
}

func (p *testPromise) reject(err error) {
	p.mu.Lock()
	f := p.onFailure
	p.done, p.err = true, err
	p.mu.Unlock()
	if f != nil {
		f(err)
	}
}

func (p *testPromise) wasCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

func TestAwaitOutsideCoroutine(t *testing.T) {
	r := require.New(t)

	_, err := Await(NewChan(1))
	r.ErrorIs(err, ErrOutsideCoroutine)

	_, err = BatchAwait([]any{NewChan(1)})
	r.ErrorIs(err, ErrOutsideCoroutine)
}

func TestAwaitInvalidType(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	var err error
	co := Launch(q, func(c *Coroutine) {
		_, err = c.Await(42)
	})
	co.Join()

	r.ErrorIs(err, ErrInvalidAwaitable)
}

func TestAwaitForeignCoroutineFails(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	var err error
	other := NewCoroutine(func(*Coroutine) {}, q, 0)
	co := Launch(q, func(c *Coroutine) {
		_, err = other.Await(NewChan(1))
	})
	co.Join()

	r.ErrorIs(err, ErrOutsideCoroutine)
}

func TestAwaitChannelBuffered(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	ch := NewChan(1)
	ch.SendNonblock("x")

	var got any
	co := Launch(q, func(c *Coroutine) {
		got, _ = c.Await(ch)
	})
	co.Join()

	r.Equal("x", got)
}

func TestAwaitChannelSuspends(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	ch := NewChan(1)
	var got any
	co := Launch(q, func(c *Coroutine) {
		got, _ = c.Await(ch)
	})

	// sent from outside after the coroutine suspended (or buffered
	// if it has not suspended yet; either way it is delivered)
	ch.SendNonblock("late")
	co.Join()

	r.Equal("late", got)
}

func TestAwaitPromiseSuccess(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	pr := &testPromise{}
	var got any
	co := Launch(q, func(c *Coroutine) {
		got, _ = c.Await(pr)
	})

	pr.fulfil("ok")
	co.Join()

	r.Equal("ok", got)
	r.NoError(co.LastError())
}

func TestAwaitPromiseRejection(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	boom := errors.New("upstream failed")
	pr := &testPromise{}
	var got any = "sentinel"
	var lastErr error
	co := Launch(q, func(c *Coroutine) {
		got, _ = c.Await(pr)
		lastErr = c.LastError()
	})

	pr.reject(boom)
	co.Join()

	r.Nil(got)
	r.ErrorIs(lastErr, boom)
	r.ErrorIs(co.LastError(), boom)
}

func TestAwaitPromiseResolvedBeforeAwait(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	pr := &testPromise{}
	pr.fulfil("early")

	var got any
	co := Launch(q, func(c *Coroutine) {
		got, _ = c.Await(pr)
	})
	co.Join()

	r.Equal("early", got)
}

func TestAwaitCancelledCoroutineReturnsNil(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	gate := NewChan(1)
	var second any = "sentinel"
	co := Launch(q, func(c *Coroutine) {
		c.Await(gate) // interrupted by cancellation
		second, _ = c.Await(NewChan(1))
	})

	co.CancelAndJoin()

	// the second await returned immediately with no value
	r.Nil(second)
}

func TestAwaitPromiseCancelPropagates(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	pr := &testPromise{}
	co := Launch(q, func(c *Coroutine) {
		c.Await(pr)
	})

	co.CancelAndJoin()

	r.True(pr.wasCancelled())
	r.True(co.Cancelled())
}

func TestBatchAwaitEmpty(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	var res []any
	var err error
	co := Launch(q, func(c *Coroutine) {
		res, err = c.BatchAwait(nil)
	})
	co.Join()

	r.NoError(err)
	r.Nil(res)
}

func TestBatchAwaitOrderIndependentOfCompletion(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	chA := NewChan(1)
	chB := NewChan(1)
	chB.SendNonblock("y") // b completes first

	var res []any
	co := Launch(q, func(c *Coroutine) {
		res, _ = c.BatchAwait([]any{chA, chB})
	})

	chA.SendNonblock("x")
	co.Join()

	r.Equal([]any{"x", "y"}, res)
}

func TestBatchAwaitMixedOutcomes(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	boom := errors.New("rejected")
	ch := NewChan(1)
	ch.SendNonblock(7)
	ok := &testPromise{}
	ok.fulfil("fine")
	bad := &testPromise{}
	bad.reject(boom)

	var res []any
	co := Launch(q, func(c *Coroutine) {
		res, _ = c.BatchAwait([]any{ch, ok, bad})
	})
	co.Join()

	r.Len(res, 3)
	r.Equal(7, res[0])
	r.Equal("fine", res[1])
	err, isErr := res[2].(error)
	r.True(isErr)
	r.ErrorIs(err, boom)
}

func TestBatchAwaitInvalidElement(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	ch := NewChan(1)
	ch.SendNonblock("v")

	var res []any
	co := Launch(q, func(c *Coroutine) {
		res, _ = c.BatchAwait([]any{ch, 3.14})
	})
	co.Join()

	r.Len(res, 2)
	r.Equal("v", res[0])
	err, isErr := res[1].(error)
	r.True(isErr)
	r.ErrorIs(err, ErrInvalidAwaitable)
}

func TestBatchAwaitAlreadyCancelled(t *testing.T) {
	r := require.New(t)
	q := newTestQueue(t)

	gate := NewChan(1)
	var res []any = []any{"sentinel"}
	var err error
	co := Launch(q, func(c *Coroutine) {
		c.Await(gate) // interrupted by cancellation
		res, err = c.BatchAwait([]any{NewChan(1)})
	})

	co.CancelAndJoin()

	r.NoError(err)
	r.Nil(res)
}
