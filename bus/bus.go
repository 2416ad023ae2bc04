package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/mostlygeek/meltdown/consumer"
	"github.com/mostlygeek/meltdown/dispatch"
	"github.com/mostlygeek/meltdown/event"
	"github.com/mostlygeek/meltdown/registry"
	"github.com/mostlygeek/meltdown/selector"
	"github.com/mostlygeek/meltdown/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// deliveryKey marks contexts handed to consumers by a bus.
type deliveryKey struct{}

// Bus routes events to consumers registered against selectors.
type Bus struct {
	registry   registry.Store
	dispatcher dispatch.Dispatcher
	logger     zerolog.Logger
	onError    func(error)
	tracer     trace.Tracer
}

type options struct {
	store      registry.Store
	def        consumer.Consumer
	hasDefault bool
	dispatcher dispatch.Dispatcher
	logger     zerolog.Logger
	onError    func(error)
	tracer     trace.Tracer
}

type Option func(*options)

// WithRegistry sets the backing store. Defaults to registry.NewCaching().
func WithRegistry(store registry.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithDefault wraps the store in a registry.Defaulting so unmatched keys are
// delivered to c.
func WithDefault(c consumer.Consumer) Option {
	return func(o *options) {
		o.def = c
		o.hasDefault = true
	}
}

// WithDispatcher sets how deliveries run. Defaults to dispatch.Sync().
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithErrorHandler receives consumer panics, reply failures and dispatch
// errors raised outside of Notify's return value.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New creates a bus. It fails only when WithDefault is given a nil consumer.
func New(opts ...Option) (*Bus, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		o.store = registry.NewCaching()
	}
	if o.hasDefault {
		d, err := registry.NewDefaulting(o.store, o.def)
		if err != nil {
			return nil, err
		}
		o.store = d
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.Sync()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracing.InstrumentationName)
	}

	return &Bus{
		registry:   o.store,
		dispatcher: o.dispatcher,
		logger:     o.logger,
		onError:    o.onError,
		tracer:     o.tracer,
	}, nil
}

// Registry returns the backing store
func (b *Bus) Registry() registry.Store {
	return b.registry
}

// On registers c for every key matching sel.
func (b *Bus) On(sel selector.Selector, c consumer.Consumer, opts ...registry.Option) (registry.Registration, error) {
	reg, err := b.registry.Register(sel, c, opts...)
	if err != nil {
		return reg, err
	}
	b.logger.Debug().Uint64("id", reg.ID()).Str("selector", selector.Describe(sel)).Msg("registered consumer")
	return reg, nil
}

// Once registers c for a single delivery.
func (b *Bus) Once(sel selector.Selector, c consumer.Consumer) (registry.Registration, error) {
	return b.On(sel, c, registry.CancelAfterUse())
}

// Receive registers fn and notifies its result to the event's ReplyTo key,
// when the event has one. The reply carries the delivery's trace context.
func (b *Bus) Receive(sel selector.Selector, fn func(*event.Event) (any, error)) (registry.Registration, error) {
	if fn == nil {
		return registry.Registration{}, registry.ErrNilConsumer
	}
	return b.On(sel, consumer.ContextFunc(func(ctx context.Context, value any) {
		ev, ok := value.(*event.Event)
		if !ok {
			return
		}

		result, err := fn(ev)
		if err != nil {
			b.handleError(&ReplyError{Key: ev.Key, Err: err})
			return
		}
		if ev.ReplyTo == nil {
			return
		}
		if err := b.Notify(ctx, ev.ReplyTo, event.New(result)); err != nil {
			b.handleError(fmt.Errorf("replying to %v: %w", ev.ReplyTo, err))
		}
	}))
}

// Select returns the registrations key resolves to.
func (b *Bus) Select(key any) []registry.Registration {
	return b.registry.Select(key)
}

// Unregister removes every registration matching key.
func (b *Bus) Unregister(key any) bool {
	return b.registry.Unregister(key)
}

// Notify delivers ev to every registration matching key. Consumers receive a
// copy with Key set, ev itself is left untouched. Errors from the dispatcher
// are joined and returned; consumer failures go to the error handler.
//
// Called with a context a consumer received from this bus, deliveries skip
// the dispatcher's backpressure so a consumer never waits on its own queue.
func (b *Bus) Notify(ctx context.Context, key any, ev *event.Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	ctx, span := b.tracer.Start(ctx, "meltdown.notify",
		trace.WithAttributes(attribute.String("meltdown.key", fmt.Sprint(key))))
	defer span.End()

	ev = ev.Copy()
	ev.Key = key
	regs := b.registry.Select(key)
	defaulted := len(regs) == 1 && regs[0].IsDefault()
	span.SetAttributes(
		attribute.Int("meltdown.matches", len(regs)),
		attribute.Bool("meltdown.default", defaulted),
	)

	if len(regs) == 0 {
		err := fmt.Errorf("%w: %v", ErrNoConsumers, key)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Debug().Interface("key", key).Str("id", ev.ID).Msg("no consumers")
		return err
	}

	dispatchFn := b.dispatcher.Dispatch
	if ctx.Value(deliveryKey{}) == b {
		if nb, ok := b.dispatcher.(dispatch.Nonblocking); ok {
			dispatchFn = nb.DispatchNoWait
		}
	}

	var errs []error
	for _, reg := range regs {
		// claim one-shot registrations up front so concurrent notifies
		// deliver them at most once
		if reg.CancelAfterUse() && !b.registry.Remove(reg.ID()) {
			continue
		}

		delivery := ev
		if resolver, ok := reg.Selector().(selector.HeaderResolver); ok {
			if headers := resolver.Headers(key); len(headers) > 0 {
				delivery = ev.Copy()
				delivery.Headers.Merge(headers)
			}
		}

		if err := dispatchFn(func() {
			b.deliver(ctx, reg, delivery)
		}); err != nil {
			errs = append(errs, fmt.Errorf("dispatching to registration %d: %w", reg.ID(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Send notifies ev with its ReplyTo set to replyTo.
func (b *Bus) Send(ctx context.Context, key any, ev *event.Event, replyTo any) error {
	if ev == nil {
		return ErrNilEvent
	}
	ev.ReplyTo = replyTo
	return b.Notify(ctx, key, ev)
}

// SendAndReceive notifies ev and delivers the first reply to reply. The reply
// key is generated and registered for a single use.
func (b *Bus) SendAndReceive(ctx context.Context, key any, ev *event.Event, reply consumer.Consumer) error {
	if ev == nil {
		return ErrNilEvent
	}

	replyKey := "reply." + uuid.NewString()
	reg, err := b.Once(selector.Object(replyKey), reply)
	if err != nil {
		return err
	}

	if err := b.Send(ctx, key, ev, replyKey); err != nil {
		b.registry.Remove(reg.ID())
		return err
	}
	return nil
}

// Close stops the dispatcher, waiting for queued deliveries.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

func (b *Bus) deliver(ctx context.Context, reg registry.Registration, ev *event.Event) {
	ctx, span := b.tracer.Start(ctx, "meltdown.deliver",
		trace.WithAttributes(
			attribute.Int64("meltdown.registration", int64(reg.ID())),
			attribute.Bool("meltdown.default", reg.IsDefault()),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{
				RegistrationID: reg.ID(),
				Key:            ev.Key,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "consumer panic")
			b.handleError(err)
		}
	}()

	if cc, ok := reg.Consumer().(consumer.ContextConsumer); ok {
		cc.AcceptContext(context.WithValue(ctx, deliveryKey{}, b), ev)
		return
	}
	reg.Consumer().Accept(ev)
}

func (b *Bus) handleError(err error) {
	b.logger.Error().Err(err).Msg("delivery failed")
	if b.onError != nil {
		b.onError(err)
	}
}
