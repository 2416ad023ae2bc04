package consumer

import (
	"context"
	"errors"
	"reflect"

	"github.com/mostlygeek/meltdown/event"
)

var ErrNilFunc = errors.New("consumer function cannot be nil")

// Consumer accepts a single value and produces a side effect.
type Consumer interface {
	Accept(value any)
}

// Func adapts an ordinary function to a Consumer.
type Func func(value any)

func (f Func) Accept(value any) {
	f(value)
}

// ContextConsumer is a Consumer that also wants the delivery context. The bus
// calls AcceptContext instead of Accept when a consumer implements it.
type ContextConsumer interface {
	Consumer
	AcceptContext(ctx context.Context, value any)
}

// ContextFunc adapts a context-aware function to a ContextConsumer.
type ContextFunc func(ctx context.Context, value any)

func (f ContextFunc) Accept(value any) {
	f(context.Background(), value)
}

func (f ContextFunc) AcceptContext(ctx context.Context, value any) {
	f(ctx, value)
}

type Option func(*adapter)

// WithTransform applies t to every value before it reaches the consumer.
func WithTransform(t func(any) any) Option {
	return func(a *adapter) {
		a.transform = t
	}
}

type adapter struct {
	fn        func(any)
	transform func(any) any
}

func (a *adapter) Accept(value any) {
	if a.transform != nil {
		value = a.transform(value)
	}
	a.fn(value)
}

// New wraps fn as a Consumer, optionally transforming values first.
func New(fn func(any), opts ...Option) (Consumer, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	a := &adapter{fn: fn}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// EventMap is a transform converting *event.Event values to their map form.
// Any other value is returned unchanged.
func EventMap(value any) any {
	if ev, ok := value.(*event.Event); ok {
		return event.ToMap(ev)
	}
	return value
}

// IsNil reports whether c is absent, including typed nil values such as a
// nil Func or a nil pointer.
func IsNil(c Consumer) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
