// Package deferred error types, with cause chain support.
package deferred

import "fmt"

// TypeError indicates a structural misuse of the chaining machinery, most
// notably a handler returning the promise it is itself populating (a
// thenable self-resolution cycle). The cycle is failed fast with this error
// as the rejection reason rather than deadlocking the chain.
type TypeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Message == "" {
		return "type error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TypeError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a non-error value recovered from a panicking resolution
// or rejection handler, so it can be delivered through the rejection
// channel. Handlers that panic with an error value reject with that error
// directly, without wrapping.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] through the cause chain.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
