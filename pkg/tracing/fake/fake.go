// Package fake provides a recording Tracer for tests. Every operation is
// captured so assertions can inspect span names, linkage, attributes, status
// and recorded errors without an OpenTelemetry SDK.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

type ctxKey struct{}

// Tracer captures all spans it creates.
type Tracer struct {
	mu      sync.RWMutex
	spans   []*Span
	nextID  int
	traceID int
}

// NewTracer creates a recording tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Start creates a span linked under the span carried by ctx, or a new trace
// root when ctx carries none.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...tracing.SpanOption) (context.Context, tracing.Span) {
	cfg := tracing.NewSpanConfig(opts)

	t.mu.Lock()
	t.nextID++
	span := &Span{
		Name:       spanName,
		Kind:       cfg.Kind(),
		StartTime:  time.Now(),
		Attributes: map[string]any{},
	}
	if parent, ok := ctx.Value(ctxKey{}).(*Span); ok {
		span.TraceIDValue = parent.TraceIDValue
		span.ParentSpanID = parent.SpanIDValue
	} else {
		t.traceID++
		span.TraceIDValue = fmt.Sprintf("trace-%04d", t.traceID)
	}
	span.SpanIDValue = fmt.Sprintf("span-%04d", t.nextID)
	t.spans = append(t.spans, span)
	t.mu.Unlock()

	span.setAttrs(cfg.Attributes())
	return context.WithValue(ctx, ctxKey{}, span), span
}

// SpanFromContext returns the span carried by ctx, or an unrecorded span.
func (t *Tracer) SpanFromContext(ctx context.Context) tracing.Span {
	if span, ok := ctx.Value(ctxKey{}).(*Span); ok {
		return span
	}
	return &Span{Attributes: map[string]any{}}
}

// ContextWithSpan returns a context carrying span.
func (t *Tracer) ContextWithSpan(ctx context.Context, span tracing.Span) context.Context {
	if s, ok := span.(*Span); ok {
		return context.WithValue(ctx, ctxKey{}, s)
	}
	return ctx
}

// Spans returns a copy of all captured spans.
func (t *Tracer) Spans() []*Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Span, len(t.spans))
	copy(out, t.spans)
	return out
}

// SpanByName returns the first captured span with the given name.
func (t *Tracer) SpanByName(name string) *Span {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, span := range t.spans {
		if span.Name == name {
			return span
		}
	}
	return nil
}

// Reset clears all captured spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
}

// Span is a captured span.
type Span struct {
	mu           sync.RWMutex
	Name         string
	Kind         tracing.SpanKind
	TraceIDValue string
	SpanIDValue  string
	ParentSpanID string
	StartTime    time.Time
	EndTime      *time.Time
	EndCount     int
	Attributes   map[string]any
	Events       []Event
	Status       tracing.StatusCode
	StatusDesc   string
	Errors       []error
}

// Event is a captured span event.
type Event struct {
	Name   string
	Fields []tracing.Field
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndCount++
	if s.EndTime == nil {
		now := time.Now()
		s.EndTime = &now
	}
}

func (s *Span) SetAttributes(fields ...tracing.Field) {
	s.setAttrs(fields)
}

func (s *Span) setAttrs(fields []tracing.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime != nil {
		return
	}
	for _, f := range fields {
		s.Attributes[f.Key] = f.Value
	}
}

func (s *Span) SetStatus(code tracing.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = code
	s.StatusDesc = description
}

func (s *Span) RecordError(err error, fields ...tracing.Field) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.Errors = append(s.Errors, err)
	s.Status = tracing.StatusCodeError
	s.StatusDesc = err.Error()
	s.mu.Unlock()
}

func (s *Span) AddEvent(name string, fields ...tracing.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Name: name, Fields: fields})
}

func (s *Span) Context() tracing.SpanContext {
	return spanContext{span: s}
}

// Attr returns a recorded attribute value.
func (s *Span) Attr(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Attributes[key]
}

// Ended reports whether End was called at least once.
func (s *Span) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndTime != nil
}

// IsRecording reports true until the span is ended.
func (s *Span) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndTime == nil
}

type spanContext struct {
	span *Span
}

func (c spanContext) TraceID() string { return c.span.TraceIDValue }
func (c spanContext) SpanID() string  { return c.span.SpanIDValue }
func (c spanContext) IsSampled() bool { return true }
