// Package coro is a stackful coroutine runtime: independently
// schedulable units of execution, each backed by its own machine
// stack, cooperatively multiplexed onto OS threads by explicit
// context switching.
//
// The package is layered. At the bottom, a Primitive owns a saved
// execution context and a four-state lifecycle (Ready, Running,
// Suspended, Dead); Resume transfers control into it and Yield
// transfers control back out. A Scheduler multiplexes primitives over
// a serial Dispatcher, draining a FIFO run queue from a dedicated
// scheduler-loop primitive. On top, a Coroutine adds structured
// concurrency: parent/child trees, cooperative cancellation that
// cascades to children and interrupts pending waits, join
// synchronization, and string-keyed parameters. Await suspends the
// calling coroutine on a Channel or Promise; BatchAwait fans out over
// a list of awaitables and collects results in input order.
//
// Context switching uses the Go runtime's own coroutine facility, so
// a suspended coroutine costs a parked goroutine and nothing more.
// Cancellation is advisory: it sets a flag and unblocks in-flight
// waits, but never forcibly unwinds a running body.
package coro
