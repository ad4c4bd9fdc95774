// Package deferred provides a flag-configurable callback list primitive
// ([Callbacks]) and a three-channel completion object built on it
// ([Deferred]), implementing promise-style chaining, thenable unwrapping,
// and progress notification without a host promise implementation.
//
// # Architecture
//
// [Callbacks] is the leaf component: an ordered, mutable list of handlers
// whose firing semantics are controlled by four independent flags ([Once],
// [Memory], [Unique], [StopOnFalse]). It is reusable beyond promises, e.g.
// for event multicast where late subscribers must observe the last known
// value exactly once.
//
// [Deferred] composes three Callbacks lists (resolve, reject, progress)
// into a settle-once completion object. Producers call [Deferred.Resolve],
// [Deferred.Reject], or [Deferred.Notify]; consumers attach handlers
// through the read-only [Promise] view ([Promise.Done], [Promise.Fail],
// [Promise.Progress], [Promise.Always], [Promise.Then]).
//
// [When] aggregates multiple values or thenables into a single promise.
//
// # Execution Model
//
// Handlers registered via Done/Fail/Progress fire synchronously, in
// registration order, within the settlement or notification call. Handlers
// passed to Then at the first chain level are dispatched through a
// [Scheduler] and run on a later turn, never synchronously within the call
// that triggered settlement; nested thenable unwrapping and progress
// propagation run synchronously in the calling stack frame.
//
// # Thread Safety
//
// All types are safe for concurrent use. Settlement is exactly-once: the
// first of Resolve/Reject wins and every later settlement call is a silent
// no-op. Re-entrant mutation (a handler adding or removing callbacks on the
// list that is firing it) is supported per the cursor rules documented on
// [Callbacks].
//
// # Usage
//
//	d := deferred.New()
//	d.Done(func(ctx any, args ...any) {
//	    fmt.Println("got", args[0])
//	})
//	d.Resolve(42)
//
// Structured logging integrates via logiface; see [SetLogger] and
// [WithLogger].
package deferred
