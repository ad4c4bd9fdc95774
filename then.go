package deferred

import (
	"sync"
)

// Then returns a new promise settled by the handlers' return values.
//
// Each handler is optional: a nil onFulfilled or onProgress forwards the
// parent's delivered (ctx, args) unchanged, except that a lone [Thenable]
// value is still unwrapped, and a nil onRejected re-raises the rejection
// with its context and arguments preserved, so the value or reason flows
// to the next link.
//
// First-level resolution/rejection handlers are dispatched through the
// deferred's [Scheduler] and never run synchronously within the settlement
// call; progress handlers run synchronously within the notification call,
// and a panicking progress handler propagates to the Notify caller rather
// than rejecting the chain.
//
// A handler's return value implementing [Thenable] is unwrapped
// recursively: the new promise settles with the thenable's eventual
// value or reason, not with the thenable itself. Each unwrapping level
// deepens the chain; a settlement attempt arriving from a link shallower
// than the deepest one seen is superseded and discarded. Returning the new
// promise itself from a handler rejects it with a [*TypeError] rather than
// deadlocking.
//
// A panic in a resolution/rejection handler is recovered and rejects the
// new promise with the panic value (wrapped in [*PanicError] when it is
// not an error), unless that path has been superseded.
func (d *Deferred) Then(onFulfilled, onRejected, onProgress ThenFunc) *Promise {
	return NewWithInit(func(child *Deferred) {
		pi := &pipe{child: child}
		d.progressList.Add(pi.resolver(0, onProgress, false, func(ctx any, args ...any) {
			child.NotifyWith(ctx, args...)
		}))
		d.resolveList.Add(pi.resolver(0, onFulfilled, false, nil))
		d.rejectList.Add(pi.resolver(0, onRejected, true, nil))
	}, d.chainOptions()...).view
}

// pipe tracks the unwrap depth of a single Then call. maxDepth advances
// each time a handler returns a thenable; settlement attempts arriving
// from a shallower link have been overtaken and are discarded.
type pipe struct {
	child    *Deferred
	maxDepth int
	mu       sync.Mutex
}

func (pi *pipe) depth() int {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.maxDepth
}

func (pi *pipe) bump() int {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.maxDepth++
	return pi.maxDepth
}

// resolver builds the callback wired onto one of the parent's lists (or
// onto an unwrapped thenable, for depth > 0).
//
// A nil handler selects passthrough: rethrow re-raises on the rejection
// channel, and otherwise ctx and args cross the link unchanged apart from
// lone-thenable unwrapping. special is non-nil only on the progress path
// and receives forwarded notifications; the progress path runs
// synchronously and unguarded, so handler panics propagate to the
// notifier.
func (pi *pipe) resolver(depth int, handler ThenFunc, rethrow bool, special func(ctx any, args ...any)) Callback {
	return func(ctx any, args ...any) any {
		mightThrow := func() {
			// Overtaken by a deeper chain link: discard.
			if depth < pi.depth() {
				return
			}

			identity := handler == nil
			var returned any
			if identity {
				if rethrow {
					// Rejection passthrough: the reason crosses the link
					// with its context and arguments intact.
					if special == nil {
						pi.child.RejectWith(ctx, args...)
						return
					}
					// A rejection surfacing while chaining a notification
					// has no rejection channel of its own; re-raise it to
					// the notifier.
					panic(singleOrSlice(args))
				}
				if len(args) != 1 {
					// Nothing unwrappable; forward unchanged.
					if special != nil {
						special(ctx, args...)
					} else {
						pi.child.ResolveWith(ctx, args...)
					}
					return
				}
				returned = args[0]
			} else {
				returned = handler(ctx, args...)
			}

			// Self-resolution cycle: fail fast rather than deadlock.
			if p, ok := returned.(*Promise); ok && p == pi.child.view {
				panic(&TypeError{Message: "deferred: thenable self-resolution"})
			}

			if th, ok := asThenable(returned); ok {
				if special != nil {
					// Progress chaining adopts the thenable at the current
					// depth without advancing it.
					th.Then(
						ThenFunc(pi.resolver(pi.depth(), nil, false, special)),
						ThenFunc(pi.resolver(pi.depth(), nil, true, special)),
						nil,
					)
				} else {
					next := pi.bump()
					th.Then(
						ThenFunc(pi.resolver(next, nil, false, nil)),
						ThenFunc(pi.resolver(next, nil, true, nil)),
						ThenFunc(pi.resolver(next, nil, false, func(ctx any, args ...any) {
							pi.child.NotifyWith(ctx, args...)
						})),
					)
				}
				return
			}

			if identity {
				// A plain lone value forwards with its context.
				if special != nil {
					special(ctx, args...)
				} else {
					pi.child.ResolveWith(ctx, args...)
				}
				return
			}

			// The handler's plain return becomes the sole argument.
			if special != nil {
				special(nil, returned)
			} else {
				pi.child.ResolveWith(nil, returned)
			}
		}

		if special != nil {
			mightThrow()
			return nil
		}

		process := func() {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if depth+1 >= pi.depth() {
					pi.child.RejectWith(nil, panicReason(r))
				} else {
					// The throwing path was superseded; the rejection
					// channel belongs to the deeper link now.
					pi.child.log().Debug().
						Field("panic", r).
						Log("deferred: exception on superseded chain path")
				}
			}()
			mightThrow()
		}
		if depth > 0 {
			process()
		} else {
			pi.child.scheduler.Schedule(process)
		}
		return nil
	}
}

// panicReason converts a recovered panic value into a rejection reason.
// Errors reject as themselves; anything else is wrapped so the reason is
// always inspectable as an error.
func panicReason(r any) any {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

// singleOrSlice collapses a one-element argument list to its element.
func singleOrSlice(args []any) any {
	if len(args) == 1 {
		return args[0]
	}
	return args
}

// asThenable reports whether v can participate in chain unwrapping,
// guarding against typed-nil implementations.
func asThenable(v any) (Thenable, bool) {
	th, ok := v.(Thenable)
	if !ok || isNilPointer(th) {
		return nil, false
	}
	return th, true
}
