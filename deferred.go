package deferred

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Handler observes a settlement or progress notification. ctx is the
// receiver chosen by the settling party (see [Deferred.ResolveWith]); args
// are the settlement arguments.
type Handler func(ctx any, args ...any)

// ThenFunc transforms a settlement or progress notification in a
// [Deferred.Then] chain. The return value settles the chained promise; a
// return value implementing [Thenable] is unwrapped recursively.
type ThenFunc func(ctx any, args ...any) any

// Thenable is any value whose eventual settlement can be observed, used
// for chain unwrapping: a [ThenFunc] return value implementing Thenable
// defers the chained promise's settlement until the thenable itself
// settles. Both [Promise] and [Deferred] implement Thenable.
type Thenable interface {
	Then(onFulfilled, onRejected, onProgress ThenFunc) *Promise
}

// Deferred is a settle-once, three-channel completion object built from
// three [Callbacks] lists.
//
// The full object exposes the settlement triggers (Resolve, Reject, Notify
// and their ...With variants) in addition to the observer operations.
// Hand consumers the read-only [Promise] view ([Deferred.Promise]) so they
// cannot settle it.
//
// Lifecycle: created pending with empty lists; [Pending] is the only
// non-terminal state, and the transition to [Resolved] or [Rejected] is
// one-way and exactly-once. Settlement disables the opposite channel's
// list and locks the progress list, so no opposite-outcome or progress
// handler ever runs after settlement. Both terminal lists carry [Memory]:
// a handler attached after settlement still observes the settled result,
// synchronously, at attach time.
type Deferred struct {
	progressList *Callbacks
	resolveList  *Callbacks
	rejectList   *Callbacks
	view         *Promise
	scheduler    Scheduler
	logger       *logiface.Logger[logiface.Event]
	hasLogger    bool
	state        atomic.Int32
	// fate serializes Resolve/Reject racers: the first CAS from 0 wins and
	// every later settlement call is a silent no-op.
	fate atomic.Int32
}

// New creates a pending Deferred.
func New(opts ...Option) *Deferred {
	return NewWithInit(nil, opts...)
}

// NewWithInit creates a pending Deferred and, if init is non-nil, invokes
// it synchronously with the new Deferred before returning, for
// builder-style construction.
func NewWithInit(init func(*Deferred), opts ...Option) *Deferred {
	cfg := resolveDeferredOptions(opts)
	d := &Deferred{
		progressList: NewCallbacks(Memory),
		resolveList:  NewCallbacks(Once | Memory),
		rejectList:   NewCallbacks(Once | Memory),
		scheduler:    cfg.scheduler,
		logger:       cfg.logger,
		hasLogger:    cfg.hasLogger,
	}
	d.view = &Promise{d: d}

	// The three channels are symmetric; wire them from one descriptor
	// table rather than spelling the cross-disabling out three times.
	channels := [3]struct {
		list     *Callbacks
		opposite *Callbacks
		terminal State
	}{
		{d.progressList, nil, Pending},
		{d.resolveList, d.rejectList, Resolved},
		{d.rejectList, d.resolveList, Rejected},
	}
	for _, ch := range channels {
		if ch.terminal == Pending {
			continue
		}
		terminal, opposite := ch.terminal, ch.opposite
		// Registered ahead of any user handler: flips the state tag,
		// disables the opposite terminal list, and locks progress.
		ch.list.Add(func(any, ...any) any {
			d.state.Store(int32(terminal))
			opposite.Disable()
			d.progressList.Lock()
			return nil
		})
	}

	if init != nil {
		init(d)
	}
	return d
}

// State returns the current [State]: [Pending], [Resolved], or [Rejected].
func (d *Deferred) State() State {
	return State(d.state.Load())
}

// Resolve settles the deferred as [Resolved] with the given arguments,
// firing done handlers with a nil ctx. No-op if already settled.
func (d *Deferred) Resolve(args ...any) *Deferred {
	return d.ResolveWith(nil, args...)
}

// ResolveWith settles the deferred as [Resolved], delivering ctx as the
// receiver argument of every done handler. No-op if already settled.
func (d *Deferred) ResolveWith(ctx any, args ...any) *Deferred {
	if d.fate.CompareAndSwap(0, 1) {
		d.resolveList.FireWith(ctx, args...)
	}
	return d
}

// Reject settles the deferred as [Rejected] with the given arguments,
// firing fail handlers with a nil ctx. No-op if already settled.
func (d *Deferred) Reject(args ...any) *Deferred {
	return d.RejectWith(nil, args...)
}

// RejectWith settles the deferred as [Rejected], delivering ctx as the
// receiver argument of every fail handler. No-op if already settled.
func (d *Deferred) RejectWith(ctx any, args ...any) *Deferred {
	if d.fate.CompareAndSwap(0, 1) {
		d.rejectList.FireWith(ctx, args...)
	}
	return d
}

// Notify fires progress handlers with the given arguments and a nil ctx.
// May be called any number of times before settlement; afterwards it is a
// silent no-op.
func (d *Deferred) Notify(args ...any) *Deferred {
	return d.NotifyWith(nil, args...)
}

// NotifyWith fires progress handlers, delivering ctx as the receiver
// argument. Silent no-op after settlement.
func (d *Deferred) NotifyWith(ctx any, args ...any) *Deferred {
	d.progressList.FireWith(ctx, args...)
	return d
}

// Done registers handlers to run when the deferred resolves. If it is
// already resolved, each handler runs synchronously, exactly once, with
// the remembered settlement. Returns the promise view for chaining.
func (d *Deferred) Done(fns ...Handler) *Promise {
	d.resolveList.Add(wrapHandlers(fns)...)
	return d.view
}

// Fail registers handlers to run when the deferred rejects, with the same
// late-attach replay semantics as [Deferred.Done].
func (d *Deferred) Fail(fns ...Handler) *Promise {
	d.rejectList.Add(wrapHandlers(fns)...)
	return d.view
}

// Progress registers handlers to run on every [Deferred.Notify] before
// settlement. A handler attached between notifications observes the most
// recent one at attach time; a handler attached after settlement never
// runs.
func (d *Deferred) Progress(fns ...Handler) *Promise {
	d.progressList.Add(wrapHandlers(fns)...)
	return d.view
}

// Always registers each handler on both the done and fail channels, so it
// runs exactly once regardless of outcome.
func (d *Deferred) Always(fns ...Handler) *Promise {
	wrapped := wrapHandlers(fns)
	d.resolveList.Add(wrapped...)
	d.rejectList.Add(wrapped...)
	return d.view
}

// Catch registers a rejection handler, equivalent to
// Then(nil, onRejected, nil).
func (d *Deferred) Catch(onRejected ThenFunc) *Promise {
	return d.Then(nil, onRejected, nil)
}

// Promise returns the read-only view of this deferred, exposing only
// observer operations. The same view is returned on every call.
//
// To let the promise surface ride along on an application object that
// carries other state, embed the returned *Promise in that object's
// struct.
func (d *Deferred) Promise() *Promise {
	return d.view
}

// chainOptions propagates this deferred's configuration to the deferreds
// created for its chain.
func (d *Deferred) chainOptions() []Option {
	opts := []Option{WithScheduler(d.scheduler)}
	if d.hasLogger {
		opts = append(opts, WithLogger(d.logger))
	}
	return opts
}

// log returns the effective logger for this deferred. May return nil; all
// logiface logger methods are nil-safe.
func (d *Deferred) log() *logiface.Logger[logiface.Event] {
	if d.hasLogger {
		return d.logger
	}
	return getLogger()
}

func wrapHandlers(fns []Handler) []Callback {
	wrapped := make([]Callback, 0, len(fns))
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn := fn
		wrapped = append(wrapped, func(ctx any, args ...any) any {
			fn(ctx, args...)
			return nil
		})
	}
	return wrapped
}
