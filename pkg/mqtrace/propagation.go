package mqtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceContext writes the W3C trace context of ctx into message
// headers (traceparent, tracestate), mutating the map in place.
func InjectTraceContext(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractTraceContext reads the W3C trace context from message headers.
// With a well-formed traceparent the returned context carries the producer's
// span context and the next span started from it joins the producer's trace.
// Absent or malformed headers return ctx unchanged, so the next span starts
// a fresh trace root. Malformed propagation data is a loss of linkage, never
// an error.
func ExtractTraceContext(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
