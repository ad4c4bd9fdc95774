package deferred

// Promise is the read-only view of a [Deferred]: it exposes only observer
// operations, so a consumer holding a Promise cannot settle or notify the
// underlying deferred.
//
// A Promise is typically obtained from [Deferred.Promise] and handed to
// consumers; embed it in an application struct to let the observer surface
// ride along on an object that also carries other state.
type Promise struct {
	d *Deferred
}

// State returns the current [State] of the underlying deferred.
func (p *Promise) State() State {
	return p.d.State()
}

// Done registers handlers to run on resolution. See [Deferred.Done].
func (p *Promise) Done(fns ...Handler) *Promise {
	return p.d.Done(fns...)
}

// Fail registers handlers to run on rejection. See [Deferred.Fail].
func (p *Promise) Fail(fns ...Handler) *Promise {
	return p.d.Fail(fns...)
}

// Progress registers handlers to run on progress notifications. See
// [Deferred.Progress].
func (p *Promise) Progress(fns ...Handler) *Promise {
	return p.d.Progress(fns...)
}

// Always registers each handler to run exactly once on either outcome.
// See [Deferred.Always].
func (p *Promise) Always(fns ...Handler) *Promise {
	return p.d.Always(fns...)
}

// Then chains continuations onto this promise, returning a new promise
// settled by the handlers' return values. See [Deferred.Then].
func (p *Promise) Then(onFulfilled, onRejected, onProgress ThenFunc) *Promise {
	return p.d.Then(onFulfilled, onRejected, onProgress)
}

// Catch registers a rejection handler, equivalent to
// Then(nil, onRejected, nil).
func (p *Promise) Catch(onRejected ThenFunc) *Promise {
	return p.d.Catch(onRejected)
}

// Promise returns the view itself, so code written against either a
// [Deferred] or a Promise can normalize to the read-only view.
func (p *Promise) Promise() *Promise {
	return p
}
