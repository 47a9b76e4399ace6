package coro

import "unsafe"

// mcoro is the runtime's coroutine handle. It is opaque; the only
// things that may be done with one are the linknamed calls below.
type mcoro struct{}

//go:linkname newcoro runtime.newcoro
func newcoro(func(*mcoro)) *mcoro

//go:linkname coroswitch runtime.coroswitch
func coroswitch(*mcoro)

// An execContext is the saved machine state of one side of a
// coroutine switch: a goroutine parked inside the runtime, waiting
// for control. It supports exactly the three operations the runtime
// layer needs: construct fresh with an entry point, switch in, and
// (implicitly, by the entry function returning) tear down.
//
// A switch is symmetric: the caller of switchTo parks where the
// context's goroutine was parked, and vice versa. The caller context
// therefore never needs to be captured explicitly; it is whatever the
// suspended side will switch back into.
type execContext struct {
	c *mcoro

	// racer is the synchronization token for the race detector:
	// every transfer of control releases it on the outgoing side and
	// acquires it on the incoming side, the bracketing iter.Pull
	// applies around coroswitch. Unused in non-race builds.
	racer int
}

// newExecContext builds a fresh context whose entry point is fn. The
// backing goroutine (and with it the machine stack) is created
// immediately but stays parked until the first switchTo. When fn
// returns, the runtime releases whoever is blocked in the final
// switch and retires the goroutine and its stack.
func newExecContext(fn func()) *execContext {
	ctx := &execContext{}
	ctx.c = newcoro(func(*mcoro) {
		raceAcquire(unsafe.Pointer(&ctx.racer))
		fn()
		raceRelease(unsafe.Pointer(&ctx.racer))
	})
	return ctx
}

// switchTo transfers control into the context, parking the calling
// side in its place. It returns when the other side switches back or
// its entry function returns.
func (ctx *execContext) switchTo() {
	raceRelease(unsafe.Pointer(&ctx.racer))
	coroswitch(ctx.c)
	raceAcquire(unsafe.Pointer(&ctx.racer))
}
