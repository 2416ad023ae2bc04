package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConsumers is returned by Notify when nothing matched and the bus has no default consumer.
	ErrNoConsumers = errors.New("no consumers for key")

	// ErrConsumerPanic matches any *PanicError via errors.Is.
	ErrConsumerPanic = errors.New("consumer panicked")

	ErrNilEvent = errors.New("event cannot be nil")
)

// PanicError wraps a value recovered from a consumer.
type PanicError struct {
	RegistrationID uint64
	Key            any
	Value          any
	Stack          string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("consumer panic for registration %d on key %v: %v", e.RegistrationID, e.Key, e.Value)
}

// Is allows errors.Is to match PanicError with ErrConsumerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrConsumerPanic
}

// ReplyError wraps an error returned by a Receive function.
type ReplyError struct {
	Key any
	Err error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("reply function failed on key %v: %v", e.Key, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}
