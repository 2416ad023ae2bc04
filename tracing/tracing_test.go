package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	t.Run("without endpoint", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), Config{})
		require.NoError(t, err)
		assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())

		_, span := otel.Tracer(InstrumentationName).Start(context.Background(), "test")
		assert.True(t, span.SpanContext().IsValid())
		span.End()

		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("with endpoint", func(t *testing.T) {
		// the exporter connects lazily, nothing listens here
		shutdown, err := Setup(context.Background(), Config{
			Endpoint:    "127.0.0.1:4318",
			Insecure:    true,
			ServiceName: "meltdown-test",
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = shutdown(ctx)
	})
}
