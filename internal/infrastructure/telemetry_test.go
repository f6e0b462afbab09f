package infrastructure_test

import (
	"context"
	"testing"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider(t *testing.T) {
	app := config.App{ServiceName: "svc-chat-gateway", Env: config.Environment{Name: "development"}}

	t.Run("stdout exporter", func(t *testing.T) {
		tp, shutdown, err := infrastructure.NewTracerProvider(context.Background(), app, config.Telemetry{
			Enabled:      true,
			ExporterType: "stdout",
			Traces:       config.Traces{Enabled: true, SamplerRatio: 1},
		})
		require.NoError(t, err)
		require.NotNil(t, tp)

		_, span := tp.Tracer("test").Start(context.Background(), "chat.answer")
		require.True(t, span.SpanContext().IsValid())
		span.End()

		require.NoError(t, shutdown(context.Background()))
	})

	t.Run("unsupported exporter", func(t *testing.T) {
		_, _, err := infrastructure.NewTracerProvider(context.Background(), app, config.Telemetry{
			Enabled:      true,
			ExporterType: "zipkin",
		})
		require.ErrorContains(t, err, `unsupported exporter type "zipkin"`)
	})
}

func TestNewNoopTracerProvider(t *testing.T) {
	t.Parallel()

	_, span := infrastructure.NewNoopTracerProvider().Tracer("test").Start(context.Background(), "noop")
	defer span.End()

	require.False(t, span.SpanContext().IsValid())
}
