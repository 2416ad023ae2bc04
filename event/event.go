package event

import (
	"maps"

	"github.com/google/uuid"
)

// Map keys produced by ToMap and Fields.
const (
	KeyData    = "data"
	KeyReplyTo = "reply-to"
	KeyHeaders = "headers"
	KeyID      = "id"
)

// Headers holds string metadata attached to an event
type Headers map[string]string

func (h Headers) Get(name string) (string, bool) {
	v, ok := h[name]
	return v, ok
}

// Set stores a header value, allocating the map when needed.
func (h *Headers) Set(name, value string) {
	if *h == nil {
		*h = make(Headers)
	}
	(*h)[name] = value
}

// Merge copies other into h. Existing values are overwritten.
func (h *Headers) Merge(other map[string]string) {
	for k, v := range other {
		h.Set(k, v)
	}
}

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return maps.Clone(h)
}

// Event is the unit of data routed through a bus.
type Event struct {
	ID      string
	Key     any // set by the bus on notify
	Headers Headers
	ReplyTo any
	Data    any
}

type Option func(*Event)

func WithHeaders(h map[string]string) Option {
	return func(ev *Event) {
		ev.Headers.Merge(h)
	}
}

func WithReplyTo(key any) Option {
	return func(ev *Event) {
		ev.ReplyTo = key
	}
}

func WithID(id string) Option {
	return func(ev *Event) {
		ev.ID = id
	}
}

// New creates an event carrying data with a random UUID.
func New(data any, opts ...Option) *Event {
	ev := &Event{
		ID:   uuid.NewString(),
		Data: data,
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Copy returns a shallow copy with its own headers map.
func (ev *Event) Copy() *Event {
	if ev == nil {
		return nil
	}
	cp := *ev
	cp.Headers = ev.Headers.Clone()
	return &cp
}

// Field is a single entry of an event's key-value form.
type Field struct {
	Key   string
	Value any
}

// Fields returns the event as an ordered list of data, reply-to, headers, id.
// A nil event yields the same keys with nil values.
func Fields(ev *Event) []Field {
	if ev == nil {
		return []Field{{KeyData, nil}, {KeyReplyTo, nil}, {KeyHeaders, nil}, {KeyID, nil}}
	}

	var headers any
	if ev.Headers != nil {
		headers = map[string]string(ev.Headers)
	}

	var id any
	if ev.ID != "" {
		id = ev.ID
	}

	return []Field{
		{KeyData, ev.Data},
		{KeyReplyTo, ev.ReplyTo},
		{KeyHeaders, headers},
		{KeyID, id},
	}
}

// ToMap converts an event to a generic map with the keys data, reply-to,
// headers and id. Absent fields are present with nil values.
func ToMap(ev *Event) map[string]any {
	fields := Fields(ev)
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}
