package tracing

import "context"

// No-op implementations used when tracing is disabled or the sample rate is
// zero. The fast path constructs no span objects and computes no attributes.

type noopTracer struct{}

// NewNoOpTracer creates a tracer that records nothing.
func NewNoOpTracer() Tracer {
	return noopTracer{}
}

var sharedNoopSpan = noopSpan{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, sharedNoopSpan
}

func (noopTracer) SpanFromContext(context.Context) Span {
	return sharedNoopSpan
}

func (noopTracer) ContextWithSpan(ctx context.Context, _ Span) context.Context {
	return ctx
}

type noopSpan struct{}

func (noopSpan) End()                         {}
func (noopSpan) SetAttributes(...Field)       {}
func (noopSpan) SetStatus(StatusCode, string) {}
func (noopSpan) RecordError(error, ...Field)  {}
func (noopSpan) AddEvent(string, ...Field)    {}
func (noopSpan) IsRecording() bool            { return false }
func (noopSpan) Context() SpanContext         { return noopSpanContext{} }

type noopSpanContext struct{}

func (noopSpanContext) TraceID() string { return "" }
func (noopSpanContext) SpanID() string  { return "" }
func (noopSpanContext) IsSampled() bool { return false }
