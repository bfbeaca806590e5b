package kafka

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/messaging"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/mqtrace"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("kafka: publisher closed")

type publisher struct {
	writer *kafka.Writer
	cfg    *Config
	tracer tracing.Tracer
	closed atomic.Bool
}

// NewPublisher creates a Kafka publisher for cfg.Topic. Every publish runs
// inside a producer span and injects the current trace context into message
// headers so consumers join the same trace. A nil tracer disables the span
// wrapping but headers are still injected from the ambient context.
func NewPublisher(cfg *Config, tracer tracing.Tracer) (messaging.Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = tracing.NewNoOpTracer()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}

	return &publisher{
		writer: writer,
		cfg:    cfg,
		tracer: tracer,
	}, nil
}

func (p *publisher) Publish(ctx context.Context, key string, headers map[string]string, body []byte) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if headers == nil {
		headers = make(map[string]string)
	}

	ctx, span := p.tracer.Start(ctx, "publish "+p.cfg.Topic,
		tracing.WithSpanKind(tracing.SpanKindProducer),
		tracing.WithAttributes(
			tracing.String(tracing.AttrMessagingSystem, tracing.MessagingSystemKafka),
			tracing.String(tracing.AttrMessagingOperation, "publish"),
			tracing.String(tracing.AttrMessagingTopic, p.cfg.Topic),
		),
	)
	defer span.End()

	mqtrace.InjectTraceContext(ctx, headers)

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Headers: kafkaHeaders(headers),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(tracing.StatusCodeError, err.Error())
		return err
	}
	span.SetStatus(tracing.StatusCodeOK, "")
	return nil
}

func (p *publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

func kafkaHeaders(headers map[string]string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}
