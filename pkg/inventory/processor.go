package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/messaging"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// Store stages host rows inside one open transaction and commits them as a
// batch. Implementations are not safe for concurrent use; the processor
// serializes access.
type Store interface {
	// Stage executes the upsert for one host within the current batch
	// transaction, reporting whether the row was created or updated.
	Stage(ctx context.Context, host *Host) (UpsertResult, error)

	// UpdateSystemProfile replaces the system profile of a staged host
	// within the same transaction.
	UpdateSystemProfile(ctx context.Context, hostID string, profile map[string]any) error

	// Commit commits the current batch transaction.
	Commit(ctx context.Context) error

	// Rollback discards the current batch transaction.
	Rollback(ctx context.Context) error
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithBatchSize sets how many staged hosts trigger an automatic flush.
func WithBatchSize(size int) ProcessorOption {
	return func(p *Processor) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// Processor implements the host ingress pipeline: per-message validation and
// staging, batched commit under one db_commit span, and event publication
// after a successful commit. One processor instance is driven by a single
// consumer goroutine; the internal mutex serializes staging against a
// concurrent timer-driven flush.
type Processor struct {
	store     Store
	publisher messaging.Publisher
	tracer    tracing.Tracer
	logger    tracing.Logger
	batchSize int

	mu      sync.Mutex
	pending []stagedHost
}

type stagedHost struct {
	host   *Host
	result UpsertResult
}

// NewProcessor creates the ingress processor. publisher may be nil when
// event production is disabled.
func NewProcessor(store Store, publisher messaging.Publisher, tracer tracing.Tracer, logger tracing.Logger, opts ...ProcessorOption) *Processor {
	if tracer == nil {
		tracer = tracing.NewNoOpTracer()
	}
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}
	p := &Processor{
		store:     store,
		publisher: publisher,
		tracer:    tracer,
		logger:    logger,
		batchSize: 50,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleMessage processes one host MQ message. The caller is expected to
// wrap it with mqtrace.WrapHandler so ctx carries the message span; every
// operation performed here attaches under that span.
func (p *Processor) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	var envelope HostMessage
	if err := sonic.Unmarshal(msg.Body, &envelope); err != nil {
		return fmt.Errorf("malformed host message: %w", err)
	}
	if envelope.Operation != OperationAddHost {
		return fmt.Errorf("unsupported operation %q", envelope.Operation)
	}

	result, full, err := p.processHost(ctx, &envelope)
	if err != nil {
		return err
	}

	// Reflect the per-host outcome on the ambient message span.
	p.tracer.SpanFromContext(ctx).SetAttributes(
		tracing.String(tracing.AttrOperationResult, result.Result()),
		tracing.String(tracing.AttrOperationType, tracing.OperationTypeSingle),
	)

	if full {
		return p.Flush(ctx)
	}
	return nil
}

func (p *Processor) processHost(ctx context.Context, envelope *HostMessage) (UpsertResult, bool, error) {
	ingress := tracing.Operation{
		Name:   tracing.SpanIngressHostProcessing,
		Attrs:  []tracing.ExtractionRule{HostAttrs()},
		Result: UpsertResultAttr(),
	}

	var full bool
	result, err := tracing.Do(ctx, p.tracer, p.logger, ingress, envelope.Data, func(ctx context.Context) (UpsertResult, error) {
		if err := envelope.Data.Validate(); err != nil {
			return UpsertResult{}, err
		}

		// Staging and the pending append share one critical section with
		// Flush, so a staged row is always counted by the flush that
		// commits it.
		p.mu.Lock()
		defer p.mu.Unlock()
		result, err := p.store.Stage(ctx, envelope.Data)
		if err != nil {
			return UpsertResult{}, err
		}

		if len(envelope.Data.SystemProfile) > 0 {
			profileOp := tracing.Operation{
				Name:  tracing.SpanSystemProfileUpdate,
				Attrs: []tracing.ExtractionRule{HostAttrs()},
			}
			if err := tracing.Run(ctx, p.tracer, p.logger, profileOp, envelope.Data, func(ctx context.Context) error {
				return p.store.UpdateSystemProfile(ctx, envelope.Data.ID, envelope.Data.SystemProfile)
			}); err != nil {
				return UpsertResult{}, err
			}
		}

		p.pending = append(p.pending, stagedHost{host: envelope.Data, result: result})
		full = len(p.pending) >= p.batchSize
		return result, nil
	})
	return result, full, err
}

// Flush commits the staged batch under a single db_commit span, counting the
// per-row outcomes, then publishes one event per committed host. Flushing an
// empty batch is a no-op.
func (p *Processor) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		return nil
	}
	staged := p.pending
	p.pending = nil

	ctx, batch := tracing.OpenBatch(ctx, p.tracer, p.logger, tracing.SpanDBCommit)

	err := p.store.Commit(ctx)
	for range staged {
		batch.RecordItem(err == nil)
	}
	batch.Flush()

	if err != nil {
		if rbErr := p.store.Rollback(ctx); rbErr != nil {
			p.logger.Warn(ctx, "rollback failed after commit error", tracing.Error(rbErr))
		}
		return fmt.Errorf("batch commit failed: %w", err)
	}

	for _, s := range staged {
		if pubErr := p.writeEvent(ctx, s); pubErr != nil {
			p.logger.Error(ctx, pubErr, "event publication failed",
				tracing.String(tracing.AttrHostID, s.result.HostID))
		}
	}
	return nil
}

// PendingCount returns the number of hosts staged and not yet flushed.
func (p *Processor) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Processor) writeEvent(ctx context.Context, s stagedHost) error {
	if p.publisher == nil {
		return nil
	}

	writeOp := tracing.Operation{
		Name:  tracing.SpanWriteEventMessage,
		Kind:  tracing.SpanKindProducer,
		Attrs: []tracing.ExtractionRule{HostAttrs()},
	}
	return tracing.Run(ctx, p.tracer, p.logger, writeOp, s.host, func(ctx context.Context) error {
		body, err := sonic.Marshal(Event{Type: s.result.Result(), Host: s.host})
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return p.publisher.Publish(ctx, s.host.ID, map[string]string{"event_type": s.result.Result()}, body)
	})
}
