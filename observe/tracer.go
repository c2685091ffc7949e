package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FetchMeta describes one upstream fetch for telemetry purposes.
type FetchMeta struct {
	Dataset string // dataset name, e.g. "liveBuses" (required)
	Key     string // cache key the fetch populates (optional)
}

// SpanName returns the span name for this fetch: cache.fetch.<dataset>.
func (m FetchMeta) SpanName() string {
	return "cache.fetch." + m.Dataset
}

// Validate reports whether the metadata carries a dataset.
func (m FetchMeta) Validate() error {
	if m.Dataset == "" {
		return ErrMissingDataset
	}
	return nil
}

func (m FetchMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("cache.dataset", m.Dataset)}
	if m.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", m.Key))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with fetch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NewNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("cache.fetch.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.fetch.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer returns a Tracer producing non-recording spans.
func NewNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
