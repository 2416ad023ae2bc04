package consumer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mostlygeek/meltdown/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	var got any
	var c Consumer = Func(func(v any) { got = v })
	c.Accept("hello")
	assert.Equal(t, "hello", got)
}

type ctxKey struct{}

func TestContextFunc(t *testing.T) {
	var gotCtx context.Context
	var got any
	var c ContextConsumer = ContextFunc(func(ctx context.Context, v any) {
		gotCtx, got = ctx, v
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "trace")
	c.AcceptContext(ctx, "hello")
	assert.Equal(t, "hello", got)
	assert.Equal(t, "trace", gotCtx.Value(ctxKey{}))

	// plain Accept falls back to an empty context
	c.Accept("again")
	assert.Equal(t, "again", got)
	assert.Nil(t, gotCtx.Value(ctxKey{}))
}

func TestNew(t *testing.T) {
	t.Run("plain invoke", func(t *testing.T) {
		var got any
		c, err := New(func(v any) { got = v })
		require.NoError(t, err)
		c.Accept(42)
		assert.Equal(t, 42, got)
	})

	t.Run("transform then invoke", func(t *testing.T) {
		var got any
		c, err := New(func(v any) { got = v }, WithTransform(func(v any) any {
			return v.(int) * 2
		}))
		require.NoError(t, err)
		c.Accept(21)
		assert.Equal(t, 42, got)
	})

	t.Run("event map transform", func(t *testing.T) {
		var got any
		c, err := New(func(v any) { got = v }, WithTransform(EventMap))
		require.NoError(t, err)

		c.Accept(&event.Event{ID: "e1", Data: "payload"})
		m, ok := got.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "payload", m["data"])
		assert.Equal(t, "e1", m["id"])

		c.Accept("not an event")
		assert.Equal(t, "not an event", got)
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrNilFunc)
	})
}

func TestIsNil(t *testing.T) {
	var nilFunc Func
	var nilExec *Exec

	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(nilFunc))
	assert.True(t, IsNil(nilExec))
	assert.False(t, IsNil(Func(func(any) {})))
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	c := Log(zerolog.New(&buf))

	c.Accept(&event.Event{ID: "e1", Key: "orders.created", Data: 7})
	assert.Contains(t, buf.String(), `"id":"e1"`)
	assert.Contains(t, buf.String(), `"key":"orders.created"`)
	assert.Contains(t, buf.String(), "unrouted event")

	buf.Reset()
	c.Accept("raw")
	assert.Contains(t, buf.String(), `"value":"raw"`)
}

func TestExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}

	t.Run("parses quoted command lines", func(t *testing.T) {
		e, err := NewExec(`notify-send "order created" --urgency=low`)
		require.NoError(t, err)
		assert.Equal(t, []string{"notify-send", "order created", "--urgency=low"}, e.Args())
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := NewExec("   ")
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})

	t.Run("writes the event to stdin", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "event.json")
		e, err := NewExec("sh -c 'cat > " + out + "'")
		require.NoError(t, err)

		e.Accept(&event.Event{ID: "e1", Data: "payload"})

		b, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":"payload","reply-to":null,"headers":null,"id":"e1"}`, string(b))
	})

	t.Run("failures reach the error handler", func(t *testing.T) {
		var failure error
		e, err := NewExec("sh -c 'echo broken >&2; exit 3'", WithErrorHandler(func(err error) {
			failure = err
		}))
		require.NoError(t, err)

		e.Accept("value")
		require.Error(t, failure)
		assert.Contains(t, failure.Error(), "broken")
	})
}
