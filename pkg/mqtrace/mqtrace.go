// Package mqtrace wraps message-queue consumption with tracing spans. It
// extracts the parent trace context from inbound message headers, opens one
// span per message and makes that span the ambient context for every
// operation performed while handling the message. It wraps exactly one
// delivery attempt; redelivery and ack policy stay with the consumer.
package mqtrace

import (
	"context"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/messaging"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// Config describes how messages from one topic are traced.
type Config struct {
	Tracer tracing.Tracer
	Logger tracing.Logger

	// SpanName names the message-handling span. Defaults to
	// tracing.SpanHostMessageHandling.
	SpanName string

	// Operation is the messaging.operation attribute value, e.g. "process".
	Operation string

	// Attrs extract identity and host attributes from the raw message body.
	// Rules receive the body []byte and must tolerate malformed payloads.
	Attrs []tracing.ExtractionRule
}

// WrapHandler decorates handler with per-message span lifecycle. The span
// closes on every exit path; handler errors are recorded on the span and
// returned unchanged so the consumer can apply its own retry policy.
func WrapHandler(cfg Config, handler messaging.ConsumeHandler) messaging.ConsumeHandler {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.NewNoOpTracer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}
	spanName := cfg.SpanName
	if spanName == "" {
		spanName = tracing.SpanHostMessageHandling
	}
	operation := cfg.Operation
	if operation == "" {
		operation = "process"
	}

	return func(ctx context.Context, msg *messaging.Message) error {
		ctx = ExtractTraceContext(ctx, msg.Headers)

		ctx, span := tracer.Start(ctx, spanName,
			tracing.WithSpanKind(tracing.SpanKindConsumer),
			tracing.WithAttributes(
				tracing.String(tracing.AttrMessagingSystem, tracing.MessagingSystemKafka),
				tracing.String(tracing.AttrMessagingOperation, operation),
				tracing.String(tracing.AttrMessagingTopic, msg.Topic),
			),
		)
		defer span.End()

		tracing.ApplyRules(ctx, span, logger, msg.Body, cfg.Attrs)

		if err := handler(ctx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(tracing.StatusCodeError, err.Error())
			span.SetAttributes(tracing.String(tracing.AttrOperationResult, tracing.ResultFailed))
			return err
		}
		span.SetStatus(tracing.StatusCodeOK, "")
		return nil
	}
}
