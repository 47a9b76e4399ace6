package coro

// actorMailboxCap bounds undelivered messages; sends beyond it are
// rejected rather than queued without limit.
const actorMailboxCap = 256

// An Actor is a coroutine paired with a mailbox channel: messages are
// sent nonblocking from any thread and handled one at a time, in
// order, inside the actor's coroutine. Cancelling the actor
// interrupts a pending mailbox wait and stops the drain loop.
type Actor struct {
	co      *Coroutine
	mailbox *Chan
}

// SpawnActor launches an actor on the dispatch target. handle runs
// inside the actor's coroutine for each message, in arrival order.
func SpawnActor(queue Dispatcher, handle func(msg any)) *Actor {
	a := &Actor{mailbox: NewChan(actorMailboxCap)}
	a.co = Launch(queue, func(c *Coroutine) {
		for {
			msg, err := c.Await(a.mailbox)
			if err != nil || c.Cancelled() {
				return
			}
			handle(msg)
		}
	})
	return a
}

// Send posts a message to the mailbox. It reports false when the
// mailbox is full or the actor can no longer drain it.
func (a *Actor) Send(msg any) bool {
	if a.co.Finished() {
		return false
	}
	return a.mailbox.SendNonblock(msg)
}

// Cancel stops the actor cooperatively: a pending mailbox wait is
// unblocked and the drain loop exits. Messages still buffered are
// dropped.
func (a *Actor) Cancel() {
	a.co.Cancel()
}

// Join blocks until the actor's coroutine has finished.
func (a *Actor) Join() {
	a.co.Join()
}

// Coroutine returns the actor's underlying coroutine.
func (a *Actor) Coroutine() *Coroutine {
	return a.co
}
