package coro

import (
	"fmt"
	"runtime/debug"
)

// panicError preserves a panic that escaped a coroutine body: the
// original value plus the stack of the body goroutine at the point of
// the panic. It surfaces through Coroutine.LastError, or re-panics
// out of Resume for bare primitives.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("coro: coroutine panicked: %v", p.value)
}

// ErrorWithStack renders the panic value together with the captured
// coroutine stack.
func (p *panicError) ErrorWithStack() string {
	return fmt.Sprintf("%v\n\n%s", p.value, p.stack)
}

func (p *panicError) Unwrap() error {
	err, ok := p.value.(error)
	if !ok {
		return nil
	}
	return err
}

func newPanicError(v any) error {
	return &panicError{
		value: v,
		stack: debug.Stack(),
	}
}
