package redpanda

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrierSetOverwrites(t *testing.T) {
	var headers []kgo.RecordHeader
	c := headerCarrier{headers: &headers}

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	require.Len(t, headers, 2)
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

func TestTraceContextRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	record := &kgo.Record{Topic: TopicAuditCompleted}
	injectTraceHeaders(ctx, record)
	require.NotEmpty(t, record.Headers)

	got := trace.SpanContextFromContext(extractTraceContext(context.Background(), record))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
	assert.True(t, got.IsSampled())
}

func TestDefaultTopicConfigs(t *testing.T) {
	names := map[string]bool{}
	for _, cfg := range DefaultTopicConfigs() {
		names[cfg.Name] = true
		assert.Positive(t, cfg.Partitions)
	}
	assert.True(t, names[TopicAuditCompleted])
	assert.True(t, names[TopicNotificationResults])
	assert.True(t, names[TopicDeadLetter])
}
