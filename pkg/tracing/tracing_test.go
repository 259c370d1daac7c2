package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"leadcolor/internal/config"
)

func TestTraceContextRoundTrip(t *testing.T) {
	_, err := Init(config.TracingConfig{}, "test")
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "source", Value: []byte("widget")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "traceparent", headers[1].Key)

	extracted := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, TraceID(ctx), TraceID(extracted))
	assert.NotEmpty(t, TraceID(ctx))
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	c := &headerCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(config.SamplerConfig{Type: "always_off"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(config.SamplerConfig{Type: "bogus"}).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(),
		Sampler(config.SamplerConfig{Type: "traceidratio", Param: 0.5}).Description())
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
