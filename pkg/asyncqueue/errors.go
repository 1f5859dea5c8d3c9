package asyncqueue

import (
	"errors"
	"fmt"
)

// ErrQueueStopped is delivered to callbacks of items added after Stop or Close.
var ErrQueueStopped = errors.New("queue was stopped")

// InvocationError reports that the processor itself malfunctioned (panicked)
// instead of reporting a failure through its continuation.
type InvocationError struct {
	Name string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("asyncqueue(%s): processor invocation failed: %v", e.Name, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking processor.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("processor panicked: %v", e.Value)
}

// IsInvocationError reports whether err is, or wraps, an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}
