package coro

import "sync"

// Schedulers are keyed by their dispatch target and created lazily.
// The registry replaces the original thread-local singleton: the
// handle is passed or looked up explicitly, and the per-target state
// itself is only ever touched while executing on that target.
var (
	schedulersMu sync.Mutex
	schedulers   = make(map[Dispatcher]*Scheduler)
)

// A Scheduler cooperatively multiplexes primitives over one serial
// dispatch target. It owns a FIFO run queue and a dedicated
// scheduler-loop primitive that drains it; only one primitive
// executes at a time per scheduler, and a primitive never migrates
// between schedulers once bound.
//
// All scheduler state except the registry is confined to the dispatch
// target: Add, schedule and the loop must only run on it.
type Scheduler struct {
	target  Dispatcher
	runq    runQueue
	current *Primitive
	loop    *Primitive
	closing bool
}

// SchedulerFor returns the scheduler bound to the dispatch target,
// lazily constructing it (and its scheduler-loop primitive) on first
// use.
func SchedulerFor(d Dispatcher) *Scheduler {
	if d == nil {
		panic("coro: SchedulerFor with nil dispatcher")
	}
	schedulersMu.Lock()
	defer schedulersMu.Unlock()
	s := schedulers[d]
	if s == nil {
		s = &Scheduler{target: d}
		s.newLoop()
		schedulers[d] = s
	}
	return s
}

// CurrentScheduler returns the scheduler driving the calling
// coroutine, or nil when called outside any coroutine body.
func CurrentScheduler() *Scheduler {
	if p := currentPrimitive(); p != nil {
		return p.sched
	}
	return nil
}

// Target returns the dispatch target the scheduler is bound to.
func (s *Scheduler) Target() Dispatcher {
	return s.target
}

// QueueLen returns the run queue length. Only accurate when read on
// the scheduler's dispatch target.
func (s *Scheduler) QueueLen() int {
	return s.runq.len()
}

// CurrentPrimitive returns the primitive control is currently inside,
// or nil while the scheduler is idle or draining between primitives.
func (s *Scheduler) CurrentPrimitive() *Primitive {
	return s.current
}

func (s *Scheduler) newLoop() {
	s.loop = NewPrimitive(s.loopEntry, 0)
	s.loop.isScheduler = true
	s.loop.sched = s
}

// loopEntry is the scheduler-loop primitive's body: pop one primitive
// and switch into it; when the queue runs dry, yield the loop itself
// back to the driving thread and pick up again on the next resume.
// Primitives that come back Dead are closed immediately so their
// resources are reclaimed on the spot.
func (s *Scheduler) loopEntry() {
	for {
		p := s.runq.pop()
		if p == nil {
			if s.closing {
				return
			}
			s.loop.Yield()
			continue
		}
		s.current = p
		p.Resume()
		s.current = nil
		if p.Status() == StatusDead {
			p.Close()
		}
	}
}

// reviveLoop recreates the loop primitive if it previously exited
// (shutdown drained it with no outstanding work).
func (s *Scheduler) reviveLoop() {
	if s.loop == nil || s.loop.Status() == StatusDead {
		s.closing = false
		s.newLoop()
	}
}

// Add enqueues a primitive without forcing an immediate context
// switch from a running coroutine. If the scheduler is idle the loop
// is resumed inline to drain the queue before Add returns. Must be
// called on the scheduler's dispatch target.
func (s *Scheduler) Add(p *Primitive) {
	s.reviveLoop()
	p.sched = s
	s.runq.push(p)
	if s.current == nil {
		s.resumeLoop()
	}
}

// schedule binds and enqueues a primitive, then hands control to the
// scheduler loop. Called from inside a coroutine already running on
// this scheduler, it re-enqueues that caller and yields it, so the
// loop drains both in FIFO order; launching coroutines from
// coroutines therefore never deepens the native call stack. Called
// while the scheduler is idle, it resumes the loop directly and
// returns once the queue has drained.
func (s *Scheduler) schedule(p *Primitive) {
	s.reviveLoop()
	p.sched = s
	s.runq.push(p)
	if cur := s.current; cur != nil && cur != s.loop {
		s.runq.push(cur)
		cur.Yield()
		return
	}
	if s.current == nil {
		s.resumeLoop()
	}
}

func (s *Scheduler) resumeLoop() {
	switch s.loop.Status() {
	case StatusReady, StatusSuspended:
		s.loop.Resume()
	}
}

// Shutdown posts a teardown onto the dispatch target: the loop drains
// whatever is queued, exits, and is closed, and the registry entry is
// removed. Coroutines suspended on external waits at that point are
// abandoned. A later SchedulerFor on the same target builds a fresh
// scheduler.
func (s *Scheduler) Shutdown() {
	s.target.Dispatch(func() {
		s.closing = true
		if s.loop != nil {
			switch s.loop.Status() {
			case StatusSuspended:
				s.loop.Resume()
			case StatusReady:
				// never ran; nothing to drain
			}
			if s.loop.Status() == StatusDead {
				s.loop.Close()
			}
			s.loop = nil
		}
		schedulersMu.Lock()
		delete(schedulers, s.target)
		schedulersMu.Unlock()
	})
}
