package tracing

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer adapts an OpenTelemetry trace.Tracer to the Tracer facade.
type otelTracer struct {
	tracer trace.Tracer
	logger Logger
}

var kindMap = map[SpanKind]trace.SpanKind{
	SpanKindInternal: trace.SpanKindInternal,
	SpanKindServer:   trace.SpanKindServer,
	SpanKindClient:   trace.SpanKindClient,
	SpanKindProducer: trace.SpanKindProducer,
	SpanKindConsumer: trace.SpanKindConsumer,
}

func (t *otelTracer) Start(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, Span) {
	cfg := NewSpanConfig(opts)

	startOpts := []trace.SpanStartOption{
		trace.WithSpanKind(kindMap[cfg.Kind()]),
	}
	ctx, sp := t.tracer.Start(ctx, spanName, startOpts...)

	wrapped := &otelSpan{span: sp, logger: t.logger}
	if attrs := cfg.Attributes(); len(attrs) > 0 {
		wrapped.SetAttributes(attrs...)
	}
	return ctx, wrapped
}

func (t *otelTracer) SpanFromContext(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx), logger: t.logger}
}

func (t *otelTracer) ContextWithSpan(ctx context.Context, span Span) context.Context {
	if s, ok := span.(*otelSpan); ok {
		return trace.ContextWithSpan(ctx, s.span)
	}
	return ctx
}

// otelSpan wraps trace.Span with the facade's closure and fast-path
// semantics: End is idempotent-guarded and attribute conversion is skipped
// entirely for unsampled spans.
type otelSpan struct {
	span   trace.Span
	logger Logger
	ended  atomic.Bool
}

func (s *otelSpan) End() {
	if s.ended.Swap(true) {
		if s.logger != nil {
			s.logger.Warn(context.Background(), "span ended twice",
				String("span_id", s.Context().SpanID()))
		}
		return
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(fields ...Field) {
	if !s.span.IsRecording() {
		return
	}
	s.span.SetAttributes(convertFields(fields)...)
}

func (s *otelSpan) SetStatus(code StatusCode, description string) {
	switch code {
	case StatusCodeOK:
		s.span.SetStatus(codes.Ok, description)
	case StatusCodeError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otelSpan) RecordError(err error, fields ...Field) {
	if err == nil {
		return
	}
	if !s.span.IsRecording() {
		return
	}
	s.span.RecordError(err, trace.WithAttributes(convertFields(fields)...), trace.WithStackTrace(true))
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) AddEvent(name string, fields ...Field) {
	if !s.span.IsRecording() {
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(convertFields(fields)...))
}

func (s *otelSpan) IsRecording() bool {
	return !s.ended.Load() && s.span.IsRecording()
}

func (s *otelSpan) Context() SpanContext {
	return otelSpanContext{sc: s.span.SpanContext()}
}

type otelSpanContext struct {
	sc trace.SpanContext
}

func (c otelSpanContext) TraceID() string {
	if !c.sc.HasTraceID() {
		return ""
	}
	return c.sc.TraceID().String()
}

func (c otelSpanContext) SpanID() string {
	if !c.sc.HasSpanID() {
		return ""
	}
	return c.sc.SpanID().String()
}

func (c otelSpanContext) IsSampled() bool {
	return c.sc.IsSampled()
}

func convertFields(fields []Field) []attribute.KeyValue {
	kv := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		if attr, ok := convertField(f); ok {
			kv = append(kv, attr)
		}
	}
	return kv
}

func convertField(f Field) (attribute.KeyValue, bool) {
	switch v := f.Value.(type) {
	case string:
		return attribute.String(f.Key, v), true
	case int:
		return attribute.Int(f.Key, v), true
	case int64:
		return attribute.Int64(f.Key, v), true
	case int32:
		return attribute.Int64(f.Key, int64(v)), true
	case uint:
		if v > math.MaxInt64 {
			return attribute.String(f.Key, fmt.Sprintf("%d", v)), true
		}
		return attribute.Int64(f.Key, int64(v)), true
	case uint64:
		if v > math.MaxInt64 {
			return attribute.String(f.Key, fmt.Sprintf("%d", v)), true
		}
		return attribute.Int64(f.Key, int64(v)), true
	case bool:
		return attribute.Bool(f.Key, v), true
	case float64:
		return attribute.Float64(f.Key, v), true
	case float32:
		return attribute.Float64(f.Key, float64(v)), true
	case []string:
		return attribute.StringSlice(f.Key, v), true
	case []int64:
		return attribute.Int64Slice(f.Key, v), true
	case error:
		return attribute.String(f.Key, v.Error()), true
	case fmt.Stringer:
		return attribute.String(f.Key, v.String()), true
	case nil:
		return attribute.KeyValue{}, false
	default:
		return attribute.String(f.Key, fmt.Sprintf("%v", v)), true
	}
}
