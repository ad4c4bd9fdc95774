package deferred

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeError(t *testing.T) {
	e := &TypeError{Message: "cycle detected"}
	assert.Equal(t, "cycle detected", e.Error())
	assert.Nil(t, e.Unwrap())

	assert.Equal(t, "type error", (&TypeError{}).Error())

	cause := errors.New("root cause")
	wrapped := &TypeError{Message: "outer", Cause: cause}
	assert.True(t, errors.Is(wrapped, cause))
}

func TestPanicError(t *testing.T) {
	e := &PanicError{Value: "boom"}
	assert.Equal(t, "panic: boom", e.Error())
	assert.Nil(t, e.Unwrap())

	cause := errors.New("inner")
	assert.True(t, errors.Is(&PanicError{Value: cause}, cause))
}

func TestPanicError_asRejectionReason(t *testing.T) {
	d := New(WithScheduler(Immediate()))
	var got any
	d.Then(func(any, ...any) any {
		panic(42)
	}, nil, nil).Fail(func(_ any, args ...any) {
		got = args[0]
	})
	d.Resolve()

	var pe *PanicError
	if assert.True(t, errors.As(got.(error), &pe)) {
		assert.Equal(t, 42, pe.Value)
	}
}
