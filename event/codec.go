package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

type Format int

const (
	FormatJSON Format = iota
	FormatCBOR
)

var ErrUnsupportedFormat = errors.New("unsupported event format")

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatCBOR {
		return "application/cbor"
	}
	return "application/json"
}

// ParseFormat maps a Content-Type header to a format. An empty content type
// is treated as JSON.
func ParseFormat(contentType string) (Format, error) {
	if contentType == "" {
		return FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatJSON, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}

	switch mediaType {
	case "application/json", "text/json":
		return FormatJSON, nil
	case "application/cbor":
		return FormatCBOR, nil
	default:
		return FormatJSON, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
}

// wireEvent is the serialized form, keyed the same way as ToMap.
type wireEvent struct {
	Data    any               `json:"data" cbor:"data"`
	ReplyTo any               `json:"reply-to" cbor:"reply-to"`
	Headers map[string]string `json:"headers" cbor:"headers"`
	ID      string            `json:"id" cbor:"id"`
}

// cbor decodes untyped maps as map[any]any by default, which encoding/json
// cannot handle downstream
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Marshal encodes an event. The key is not part of the wire form.
func Marshal(ev *Event, f Format) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("cannot marshal nil event")
	}
	w := wireEvent{
		Data:    ev.Data,
		ReplyTo: ev.ReplyTo,
		Headers: ev.Headers,
		ID:      ev.ID,
	}

	switch f {
	case FormatJSON:
		return json.Marshal(w)
	case FormatCBOR:
		return cbor.Marshal(w)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// Unmarshal decodes an event. A missing id is replaced with a fresh one.
func Unmarshal(b []byte, f Format) (*Event, error) {
	var w wireEvent
	var err error

	switch f {
	case FormatJSON:
		err = json.Unmarshal(b, &w)
	case FormatCBOR:
		err = cborDecMode.Unmarshal(b, &w)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", f, err)
	}

	ev := New(w.Data, WithReplyTo(w.ReplyTo), WithHeaders(w.Headers))
	if w.ID != "" {
		ev.ID = w.ID
	}
	return ev, nil
}
