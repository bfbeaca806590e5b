package tracing

import "context"

// Tracer is the single entry point the inventory code uses to create spans.
// Implementations: the OpenTelemetry-backed provider (NewProvider), the no-op
// tracer (NewNoOpTracer) and the recording fake (pkg/tracing/fake).
type Tracer interface {
	// Start creates a new span and returns a context carrying it. The span
	// must be ended by calling span.End() on every exit path.
	Start(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, Span)

	// SpanFromContext returns the span carried by the context. It never
	// returns nil; with no active span a no-op span is returned.
	SpanFromContext(ctx context.Context) Span

	// ContextWithSpan returns a new context carrying the given span.
	ContextWithSpan(ctx context.Context, span Span) context.Context
}

// Span represents an active unit of traced work.
type Span interface {
	// End closes the span. A second call is a no-op reported as a usage
	// warning, never an error.
	End()

	// SetAttributes merges attributes into the span; last write wins on
	// duplicate keys. Attributes set after End are discarded.
	SetAttributes(fields ...Field)

	// SetStatus sets the span status.
	SetStatus(code StatusCode, description string)

	// RecordError records err as an exception event and marks the span
	// status as error. It does not end the span.
	RecordError(err error, fields ...Field)

	// AddEvent adds a timestamped event to the span.
	AddEvent(name string, fields ...Field)

	// IsRecording reports whether the span records attributes and events.
	// Unsampled and ended spans do not record; callers computing expensive
	// attributes should check it first.
	IsRecording() bool

	// Context returns the propagation handle of the span.
	Context() SpanContext
}

// SpanContext is the immutable carrier identifying a span for propagation.
type SpanContext interface {
	TraceID() string
	SpanID() string
	IsSampled() bool
}

// Field is a key-value pair used for span attributes and log fields.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field.
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value type.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// StatusCode represents the canonical status of a span.
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOK
	StatusCodeError
)

// SpanKind represents the role of a span in a trace.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// SpanOption configures span creation.
type SpanOption interface {
	apply(*spanConfig)
}

type spanConfig struct {
	kind       SpanKind
	attributes []Field
}

type spanOptionFunc func(*spanConfig)

func (f spanOptionFunc) apply(c *spanConfig) {
	f(c)
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return spanOptionFunc(func(c *spanConfig) {
		c.kind = kind
	})
}

// WithAttributes sets initial attributes on the span.
func WithAttributes(fields ...Field) SpanOption {
	return spanOptionFunc(func(c *spanConfig) {
		c.attributes = append(c.attributes, fields...)
	})
}

// NewSpanConfig builds a span configuration from options. Exported for
// Tracer implementations outside this package.
func NewSpanConfig(opts []SpanOption) SpanConfig {
	cfg := &spanConfig{kind: SpanKindInternal}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return cfg
}

// SpanConfig provides read access to span creation options.
type SpanConfig interface {
	Kind() SpanKind
	Attributes() []Field
}

func (c *spanConfig) Kind() SpanKind {
	return c.kind
}

func (c *spanConfig) Attributes() []Field {
	return c.attributes
}
