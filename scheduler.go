package deferred

import "sync"

// Scheduler dispatches first-level [Deferred.Then] handler invocations.
//
// Scheduled functions must run at most once each, and a conforming
// implementation preserves submission order for functions scheduled from
// the same goroutine. Handlers are never run synchronously within the
// Schedule call by the default scheduler.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the [Scheduler] interface.
type SchedulerFunc func(fn func())

// Schedule implements [Scheduler].
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Immediate returns a Scheduler that invokes each function synchronously
// within the Schedule call.
//
// NOTE: with Immediate, first-level Then handlers run synchronously within
// the settlement call that triggered them, losing the always-asynchronous
// guarantee. This is intentional, for deterministic single-goroutine use.
func Immediate() Scheduler { return immediateScheduler{} }

type immediateScheduler struct{}

func (immediateScheduler) Schedule(fn func()) {
	if fn != nil {
		fn()
	}
}

// defaultScheduler is the process-wide scheduler used when a [Deferred] is
// constructed without [WithScheduler].
var defaultScheduler = &queueScheduler{}

// DefaultScheduler returns the process-wide default [Scheduler]: a FIFO
// queue drained by a single goroutine, started lazily on first use and
// parked again when the queue empties.
func DefaultScheduler() Scheduler { return defaultScheduler }

// queueScheduler serializes scheduled functions on one goroutine,
// preserving FIFO order. A panicking function does not take the drain
// goroutine down; the panic is logged and draining continues.
type queueScheduler struct {
	queue   []func()
	running bool
	mu      sync.Mutex
}

func (s *queueScheduler) Schedule(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if !s.running {
		s.running = true
		go s.drain()
	}
	s.mu.Unlock()
}

func (s *queueScheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		runScheduled(fn)
	}
}

func runScheduled(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			getLogger().Err().
				Field("panic", r).
				Log("deferred: scheduled task panicked")
		}
	}()
	fn()
}
