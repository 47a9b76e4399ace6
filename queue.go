package coro

// runQueue is an intrusive FIFO of primitives threaded through their
// prev/next links. Push is O(1) at the tail, pop is O(1) at the head.
// head and tail are nil exactly when the queue is empty, and a popped
// primitive's links are cleared so it can be enqueued again.
//
// A runQueue is owned by one scheduler and touched only while
// executing on that scheduler's dispatch target.
type runQueue struct {
	head *Primitive
	tail *Primitive
	size int
}

func (q *runQueue) push(p *Primitive) {
	p.prev = q.tail
	p.next = nil
	if q.tail != nil {
		q.tail.next = p
	} else {
		q.head = p
	}
	q.tail = p
	q.size++
}

func (q *runQueue) pop() *Primitive {
	p := q.head
	if p == nil {
		return nil
	}
	q.head = p.next
	if q.head != nil {
		q.head.prev = nil
	} else {
		q.tail = nil
	}
	p.prev = nil
	p.next = nil
	q.size--
	return p
}

func (q *runQueue) empty() bool {
	return q.head == nil
}

func (q *runQueue) len() int {
	return q.size
}
