package coro

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveLifecycle(t *testing.T) {
	r := require.New(t)

	result := 0
	p := NewPrimitive(func() {
		Yield()
		result = 42
	}, 0)

	r.Equal(StatusReady, p.Status())

	p.Resume()
	r.Equal(StatusSuspended, p.Status())
	r.Equal(0, result)

	p.Resume()
	r.Equal(StatusDead, p.Status())
	r.Equal(42, result)

	p.Close()
}

func TestPrimitiveResumeDeadPanics(t *testing.T) {
	r := require.New(t)

	p := NewPrimitive(func() {}, 0)
	p.Resume()
	r.Equal(StatusDead, p.Status())

	r.Panics(func() { p.Resume() })
}

func TestPrimitiveResumeRunningPanics(t *testing.T) {
	r := require.New(t)

	var reentry any
	var p *Primitive
	p = NewPrimitive(func() {
		defer func() { reentry = recover() }()
		p.Resume()
	}, 0)
	p.Resume()

	r.NotNil(reentry)
	r.Contains(reentry.(string), "running")
}

func TestPrimitiveCloseNonDeadPanics(t *testing.T) {
	r := require.New(t)

	p := NewPrimitive(func() { Yield() }, 0)
	r.Panics(func() { p.Close() })

	p.Resume()
	r.Equal(StatusSuspended, p.Status())
	r.Panics(func() { p.Close() })

	p.Resume()
	p.Close()
}

func TestPrimitivePayloadDestructor(t *testing.T) {
	r := require.New(t)

	var freed []any
	p := NewPrimitive(func() {}, 0)
	p.SetPayload("first", func(v any) { freed = append(freed, v) })
	p.SetPayload("second", func(v any) { freed = append(freed, v) })
	r.Equal([]any{"first"}, freed)
	r.Equal("second", p.Payload())

	p.Resume()
	p.Close()
	r.Equal([]any{"first", "second"}, freed)
	r.Nil(p.Payload())
}

func TestPrimitivePanicCaptured(t *testing.T) {
	r := require.New(t)

	sentinel := errors.New("kaboom")
	p := NewPrimitive(func() { panic(sentinel) }, 0)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		p.Resume()
	}()

	r.NotNil(recovered)
	err, ok := recovered.(error)
	r.True(ok)
	r.True(errors.Is(err, sentinel))
	r.Equal(StatusDead, p.Status())
}

func TestPrimitiveCancelFlag(t *testing.T) {
	r := require.New(t)

	observed := false
	p := NewPrimitive(func() {
		Yield()
		observed = currentPrimitive().Canceled()
	}, 0)

	p.Resume()
	r.False(p.Canceled())
	p.Cancel()
	r.True(p.Canceled())

	p.Resume()
	r.True(observed)
	p.Close()
}

func TestYieldOutsideCoroutinePanics(t *testing.T) {
	require.Panics(t, func() { Yield() })
}

func TestYieldFromForeignPrimitivePanics(t *testing.T) {
	r := require.New(t)

	other := NewPrimitive(func() {}, 0)

	var recovered any
	p := NewPrimitive(func() {
		defer func() { recovered = recover() }()
		other.Yield()
	}, 0)
	p.Resume()

	r.NotNil(recovered)
}

func TestStackSizeNormalization(t *testing.T) {
	r := require.New(t)

	cases := []struct {
		in, want int
	}{
		{0, DefaultStackSize},
		{-1, DefaultStackSize},
		{1, stackSizeAlign},
		{stackSizeAlign, stackSizeAlign},
		{stackSizeAlign + 1, 2 * stackSizeAlign},
		{DefaultStackSize, DefaultStackSize},
		{2 * MaxStackSize, MaxStackSize},
	}
	for _, c := range cases {
		r.Equal(c.want, normalizeStackSize(c.in), "input %d", c.in)
	}

	p := NewPrimitive(func() {}, 100*1024)
	r.Equal(0, p.StackSize()%stackSizeAlign)
	r.GreaterOrEqual(p.StackSize(), 100*1024)
}

func TestCurrentPrimitiveResolution(t *testing.T) {
	r := require.New(t)

	r.Nil(currentPrimitive())

	var inside *Primitive
	p := NewPrimitive(func() {
		inside = currentPrimitive()
	}, 0)
	p.Resume()

	r.Equal(p, inside)
	r.Nil(currentPrimitive())
	p.Close()
}
