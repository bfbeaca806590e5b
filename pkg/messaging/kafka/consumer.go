package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/messaging"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// ErrConsumerClosed is returned by Run after Close.
var ErrConsumerClosed = errors.New("kafka: consumer closed")

type consumer struct {
	reader   *kafka.Reader
	cfg      *Config
	logger   tracing.Logger
	handlers []messaging.ConsumeHandler
	closed   atomic.Bool
}

// NewConsumer creates a Kafka consumer reading cfg.Topic within cfg.GroupID.
// Handlers registered before Run receive every fetched message; a message is
// committed only when all handlers succeed, leaving redelivery to the group
// protocol.
func NewConsumer(cfg *Config, logger tracing.Logger) (messaging.Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("consumer group id is required")
	}
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    cfg.StartOffset,
	})

	return &consumer{
		reader: reader,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *consumer) RegisterHandler(handler messaging.ConsumeHandler) {
	c.handlers = append(c.handlers, handler)
}

// Run fetches and dispatches messages until ctx is cancelled or Close is
// called. Transient fetch errors are retried with exponential backoff.
func (c *consumer) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		if c.closed.Load() {
			return ErrConsumerClosed
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return ctx.Err()
			case errors.Is(err, io.EOF):
				return ErrConsumerClosed
			default:
				wait := retry.NextBackOff()
				c.logger.Warn(ctx, "kafka fetch failed, backing off",
					tracing.Error(err),
					tracing.String("backoff", wait.String()))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
		}
		retry.Reset()

		if err := c.dispatch(ctx, &msg); err != nil {
			// Not committed; the group protocol redelivers on rebalance.
			c.logger.Error(ctx, err, "message handling failed",
				tracing.String("topic", msg.Topic),
				tracing.Int("partition", msg.Partition),
				tracing.Int64("offset", msg.Offset))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.logger.Warn(ctx, "commit failed", tracing.Error(err))
		}
	}
}

func (c *consumer) dispatch(ctx context.Context, msg *kafka.Message) error {
	delivered := &messaging.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Headers:   headerMap(msg.Headers),
		Body:      msg.Value,
	}
	for _, handler := range c.handlers {
		if err := handler(ctx, delivered); err != nil {
			return err
		}
	}
	return nil
}

func (c *consumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.reader.Close()
}

func headerMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
