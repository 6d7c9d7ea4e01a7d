package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaharia-lab/muster/internal/telemetry"
)

func TestSetupTracing_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := telemetry.SetupTracing(context.Background(), telemetry.TracingConfig{ServiceName: "muster"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := telemetry.SetupTracing(context.Background(), telemetry.TracingConfig{
		ServiceName:    "muster",
		ServiceVersion: "test",
		Exporter:       exp,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "dispatch.request")
	span.End()

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	require.Len(t, spans, 1)
	assert.Equal(t, "dispatch.request", spans[0].Name)
}
