package backend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/recur/internal/metrics"
	"github.com/fyrsmithlabs/recur/internal/telemetry"
)

type instrumented struct {
	next     Backend
	provider string
	tel      *telemetry.Telemetry
	metrics  *metrics.Metrics
	duration metric.Float64Histogram
}

// Instrumented wraps b with a backend.generate span and call metrics.
// Both tel and m may be nil.
func Instrumented(b Backend, tel *telemetry.Telemetry, m *metrics.Metrics) Backend {
	if tel == nil && m == nil {
		return b
	}

	i := &instrumented{
		next:     b,
		provider: ProviderOf(b),
		tel:      tel,
		metrics:  m,
	}
	// A failed instrument leaves duration nil; spans and Prometheus still work.
	if h, err := tel.Meter(telemetry.InstrumentationName).Float64Histogram(
		"recur.backend.call_duration",
		metric.WithDescription("Duration of backend calls"),
		metric.WithUnit("s"),
	); err == nil {
		i.duration = h
	}
	return i
}

func (i *instrumented) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	op := OperationFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.String("backend.provider", i.provider),
		attribute.String("backend.op", op),
	}

	ctx, span := i.tel.StartSpan(ctx, "backend.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	span.SetAttributes(
		attribute.Float64("backend.temperature", temperature),
		attribute.Int("backend.prompt_chars", len(prompt)),
	)

	start := time.Now()
	text, err := i.next.Generate(ctx, prompt, temperature)
	elapsed := time.Since(start)

	if err == nil {
		span.SetAttributes(attribute.Int("backend.reply_chars", len(text)))
	}
	telemetry.EndSpan(span, err)

	i.metrics.RecordBackendCall(i.provider, op, elapsed, err)
	if i.duration != nil {
		i.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
	return text, err
}

func (i *instrumented) Provider() string {
	return i.provider
}
