package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev := New("payload", WithReplyTo("orders.reply"), WithHeaders(map[string]string{"tenant": "acme"}))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "payload", ev.Data)
	assert.Equal(t, "orders.reply", ev.ReplyTo)
	assert.Equal(t, Headers{"tenant": "acme"}, ev.Headers)

	other := New("payload")
	assert.NotEqual(t, ev.ID, other.ID)
	assert.Nil(t, other.Headers)

	assert.Equal(t, "fixed", New(nil, WithID("fixed")).ID)
}

func TestHeaders(t *testing.T) {
	var h Headers
	_, ok := h.Get("a")
	assert.False(t, ok)

	h.Set("a", "1")
	h.Merge(map[string]string{"b": "2", "a": "3"})
	v, ok := h.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Len(t, h, 2)

	clone := h.Clone()
	clone.Set("c", "4")
	assert.Len(t, h, 2)
	assert.Nil(t, Headers(nil).Clone())
}

func TestCopy(t *testing.T) {
	ev := New(1, WithHeaders(map[string]string{"a": "1"}))
	cp := ev.Copy()
	cp.Headers.Set("b", "2")
	assert.Equal(t, ev.ID, cp.ID)
	assert.Len(t, ev.Headers, 1)
	assert.Nil(t, (*Event)(nil).Copy())
}

func TestToMap(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		ev := &Event{
			ID:      "abc",
			Headers: Headers{"tenant": "acme"},
			ReplyTo: "orders.reply",
			Data:    map[string]any{"total": 10},
		}
		assert.Equal(t, map[string]any{
			"data":     map[string]any{"total": 10},
			"reply-to": "orders.reply",
			"headers":  map[string]string{"tenant": "acme"},
			"id":       "abc",
		}, ToMap(ev))
	})

	t.Run("absent fields are nil", func(t *testing.T) {
		m := ToMap(&Event{})
		require.Len(t, m, 4)
		for _, k := range []string{KeyData, KeyReplyTo, KeyHeaders, KeyID} {
			v, ok := m[k]
			assert.True(t, ok, k)
			assert.Nil(t, v, k)
		}
	})

	t.Run("nil event", func(t *testing.T) {
		m := ToMap(nil)
		assert.Len(t, m, 4)
		assert.Nil(t, m[KeyData])
	})
}

func TestFieldsOrder(t *testing.T) {
	fields := Fields(New("x"))
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"data", "reply-to", "headers", "id"}, keys)
}
