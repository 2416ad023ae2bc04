package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		contentType string
		want        Format
		wantErr     bool
	}{
		{"", FormatJSON, false},
		{"application/json", FormatJSON, false},
		{"application/json; charset=utf-8", FormatJSON, false},
		{"application/cbor", FormatCBOR, false},
		{"text/plain", FormatJSON, true},
		{";;", FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, err := ParseFormat(tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatCBOR} {
		t.Run(f.String(), func(t *testing.T) {
			ev := &Event{
				ID:      "evt-1",
				Key:     "orders.created",
				Headers: Headers{"tenant": "acme"},
				ReplyTo: "orders.reply",
				Data:    map[string]any{"sku": "A-1"},
			}

			b, err := Marshal(ev, f)
			require.NoError(t, err)

			got, err := Unmarshal(b, f)
			require.NoError(t, err)
			assert.Equal(t, "evt-1", got.ID)
			assert.Nil(t, got.Key)
			assert.Equal(t, Headers{"tenant": "acme"}, got.Headers)
			assert.Equal(t, "orders.reply", got.ReplyTo)
			assert.Equal(t, map[string]any{"sku": "A-1"}, got.Data)
		})
	}
}

func TestCodecJSONShape(t *testing.T) {
	b, err := Marshal(&Event{ID: "x"}, FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null,"reply-to":null,"headers":null,"id":"x"}`, string(b))
}

func TestUnmarshalAssignsID(t *testing.T) {
	ev, err := Unmarshal([]byte(`{"data":1}`), FormatJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, float64(1), ev.Data)
}

func TestCodecErrors(t *testing.T) {
	_, err := Marshal(nil, FormatJSON)
	assert.Error(t, err)

	_, err = Marshal(New(1), Format(9))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Unmarshal([]byte("{"), FormatJSON)
	assert.Error(t, err)

	_, err = Unmarshal([]byte{0xff}, FormatCBOR)
	assert.Error(t, err)
}
