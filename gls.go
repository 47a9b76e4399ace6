package coro

import (
	"runtime"
	"sync"
)

// Goroutine-local running state. Every primitive body executes on its
// own dedicated goroutine, so "which coroutine is running here" is a
// lookup keyed by goroutine id. The trampoline publishes the mapping
// when the body goroutine first runs and withdraws it when the body
// returns; while the primitive is suspended the mapping is dormant,
// since nothing else can execute on a parked goroutine.
var running sync.Map // goroutine id -> *Primitive

// goid returns the calling goroutine's id. The id is parsed from the
// stack header ("goroutine N [...]"), the portable way to obtain it
// without runtime internals.
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	const prefix = len("goroutine ")
	var id uint64
	for _, c := range buf[prefix:n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

func setRunningPrimitive(id uint64, p *Primitive) {
	running.Store(id, p)
}

func clearRunningPrimitive(id uint64) {
	running.Delete(id)
}

// currentPrimitive returns the primitive executing on the calling
// goroutine, or nil when called outside any coroutine body.
func currentPrimitive() *Primitive {
	v, ok := running.Load(goid())
	if !ok {
		return nil
	}
	return v.(*Primitive)
}
