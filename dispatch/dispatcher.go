package dispatch

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrClosed      = errors.New("dispatcher is closed")
	ErrUnknownKind = errors.New("unknown dispatcher kind")
)

// Dispatcher decides where and when a delivery task runs.
type Dispatcher interface {
	Dispatch(task func()) error
	Close() error
}

// Nonblocking is implemented by dispatchers that can enqueue without waiting
// for room. Tasks running on a dispatcher use it to schedule follow-up work
// onto the same dispatcher, where waiting on backpressure would wait on
// themselves.
type Nonblocking interface {
	DispatchNoWait(task func()) error
}

// Kinds accepted by FromConfig.
const (
	KindSync       = "sync"
	KindEventLoop  = "event-loop"
	KindThreadPool = "thread-pool"
)

// Kinds lists the dispatcher names FromConfig accepts.
func Kinds() []string {
	return []string{KindSync, KindEventLoop, KindThreadPool}
}

// Valid reports whether FromConfig accepts kind. Matching ignores case.
func Valid(kind string) bool {
	return slices.Contains(Kinds(), strings.ToLower(kind))
}

// FromConfig builds a dispatcher by name.
func FromConfig(kind string, workers, maxQueue int) (Dispatcher, error) {
	switch strings.ToLower(kind) {
	case KindSync:
		return Sync(), nil
	case KindEventLoop:
		return NewQueue(maxQueue), nil
	case KindThreadPool:
		return NewPool(workers, maxQueue), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// ------------------------------------- Sync -------------------------------------

type syncDispatcher struct{}

// Sync returns a dispatcher running every task on the caller's goroutine.
func Sync() Dispatcher {
	return syncDispatcher{}
}

func (syncDispatcher) Dispatch(task func()) error {
	task()
	return nil
}

func (syncDispatcher) Close() error { return nil }
