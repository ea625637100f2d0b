package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestServiceResource(t *testing.T) {
	res, err := serviceResource(context.Background(), "dispatcher")
	require.NoError(t, err)

	v, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "dispatcher", v.AsString())
}

func TestSetupOTelWithoutEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := SetupOTel(context.Background(), &Config{ServiceName: "webhook", TraceSampleRatio: 1})
	require.NoError(t, err)
	defer ShutdownTelemetry(context.Background(), shutdown)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
