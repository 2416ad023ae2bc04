package registry

import (
	"fmt"

	"github.com/mostlygeek/meltdown/consumer"
	"github.com/mostlygeek/meltdown/selector"
)

// Registration binds a selector to a consumer. It is immutable once created.
type Registration struct {
	id             uint64
	sel            selector.Selector
	consumer       consumer.Consumer
	metadata       any
	cancelAfterUse bool
	synthesized    bool
}

type Option func(*Registration)

// WithMetadata attaches an arbitrary value to the registration.
func WithMetadata(v any) Option {
	return func(r *Registration) {
		r.metadata = v
	}
}

// CancelAfterUse marks the registration for removal after its first delivery.
func CancelAfterUse() Option {
	return func(r *Registration) {
		r.cancelAfterUse = true
	}
}

// ID is unique within the store that created the registration. Synthesized
// default registrations have ID 0.
func (r Registration) ID() uint64 { return r.id }
func (r Registration) Selector() selector.Selector { return r.sel }
func (r Registration) Consumer() consumer.Consumer { return r.consumer }
func (r Registration) Metadata() any { return r.metadata }
func (r Registration) CancelAfterUse() bool { return r.cancelAfterUse }

// IsDefault reports whether the registration was synthesized as a fallback
// rather than stored.
func (r Registration) IsDefault() bool { return r.synthesized }

func (r Registration) String() string {
	if r.synthesized {
		return fmt.Sprintf("default(%s)", selector.Describe(r.sel))
	}
	return fmt.Sprintf("#%d(%s)", r.id, selector.Describe(r.sel))
}
