package bloom

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned for a non-positive width or height. The
	// check runs before any GPU resource is created.
	ErrInvalidSize = errors.New("bloom: width and height must be positive")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("bloom: invalid config")

	ErrIncomplete     = errors.New("bloom: render target incomplete")
	ErrMissingProgram = errors.New("bloom: program not set")
)

// FatalError is the panic value of a violated setup guarantee: an incomplete
// render target or a missing program at draw time. Nothing recovers from it;
// left alone it terminates the process with Msg.
type FatalError struct {
	Msg string
	Err error
}

func (e *FatalError) Error() string { return e.Msg }

func (e *FatalError) Unwrap() error { return e.Err }

// guarantee panics with a *FatalError wrapping kind when cond is false.
func guarantee(cond bool, kind error, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	Logger().Error("bloom: fatal", "msg", msg)
	panic(&FatalError{Msg: msg, Err: kind})
}
