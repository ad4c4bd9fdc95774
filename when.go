package deferred

import (
	"reflect"
	"sync"
)

// observer is the native fast path for adoption: both *Deferred and
// *Promise satisfy it, so their settlements forward without a chain hop.
type observer interface {
	Done(fns ...Handler) *Promise
	Fail(fns ...Handler) *Promise
	Progress(fns ...Handler) *Promise
}

// When aggregates zero or more values into a single promise.
//
// With no arguments the result is already resolved with no values. With a
// single argument the result adopts it: an observable or [Thenable] value
// forwards its resolution, rejection, and notifications unchanged, and any
// other value resolves the result immediately.
//
// With two or more arguments the result resolves once every observable
// argument has resolved, delivering one value per argument in argument
// order (a multi-value resolution is delivered as an []any), with the
// context set to the slice of subordinate contexts. The first rejection
// among the arguments rejects the result with that rejection's context and
// arguments; remaining outcomes are discarded. Subordinate notifications
// are forwarded with the argument's index prepended.
func When(values ...any) *Promise {
	primary := New()

	switch len(values) {
	case 0:
		primary.Resolve()
		return primary.Promise()
	case 1:
		adoptInto(primary, values[0])
		return primary.Promise()
	}

	var (
		mu        sync.Mutex
		remaining = len(values)
		contexts  = make([]any, len(values))
		resolved  = make([]any, len(values))
	)
	updateFor := func(i int) Handler {
		return func(ctx any, args ...any) {
			mu.Lock()
			contexts[i] = ctx
			if len(args) == 1 {
				resolved[i] = args[0]
			} else {
				resolved[i] = args
			}
			remaining--
			settle := remaining == 0
			mu.Unlock()
			if settle {
				primary.ResolveWith(contexts, resolved...)
			}
		}
	}

	for i, v := range values {
		update := updateFor(i)
		reject := func(ctx any, args ...any) {
			primary.RejectWith(ctx, args...)
		}
		notify := func(i int) Handler {
			return func(ctx any, args ...any) {
				primary.NotifyWith(ctx, append([]any{i}, args...)...)
			}
		}(i)
		switch {
		case isObserver(v):
			v.(observer).Done(update).Fail(reject).Progress(notify)
		case isThenable(v):
			v.(Thenable).Then(handlerThen(update), handlerThen(reject), handlerThen(notify))
		default:
			update(nil, v)
		}
	}
	return primary.Promise()
}

// adoptInto forwards a single value's outcome to primary, or resolves
// primary immediately when the value is not observable.
func adoptInto(primary *Deferred, v any) {
	resolve := func(ctx any, args ...any) { primary.ResolveWith(ctx, args...) }
	reject := func(ctx any, args ...any) { primary.RejectWith(ctx, args...) }
	notify := func(ctx any, args ...any) { primary.NotifyWith(ctx, args...) }
	switch {
	case isObserver(v):
		v.(observer).Done(resolve).Fail(reject).Progress(notify)
	case isThenable(v):
		v.(Thenable).Then(handlerThen(resolve), handlerThen(reject), handlerThen(notify))
	default:
		primary.Resolve(v)
	}
}

func handlerThen(h Handler) ThenFunc {
	return func(ctx any, args ...any) any {
		h(ctx, args...)
		return nil
	}
}

func isObserver(v any) bool {
	o, ok := v.(observer)
	return ok && !isNilPointer(o)
}

func isThenable(v any) bool {
	th, ok := v.(Thenable)
	return ok && !isNilPointer(th)
}

func isNilPointer(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
