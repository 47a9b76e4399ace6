//go:build race

package coro

import (
	"runtime"
	"unsafe"
)

// coroswitch carries no happens-before edge of its own, so the two
// sides of a context switch look like unsynchronized goroutines to the
// race detector. Each switch is bracketed with a release on the
// outgoing side and an acquire on the incoming side of a per-context
// token address.
func raceRelease(addr unsafe.Pointer) { runtime.RaceRelease(addr) }

func raceAcquire(addr unsafe.Pointer) { runtime.RaceAcquire(addr) }
