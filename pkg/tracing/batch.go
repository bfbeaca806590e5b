package tracing

import (
	"context"
	"time"
)

// Batch tracks a single span across a group of accumulated items that are
// committed or published together. Per-item detail is expected to exist as
// child spans created during accumulation; the batch span only aggregates
// counts. A Batch is owned by the single goroutine driving the batch loop and
// must not be shared across concurrent drivers.
type Batch struct {
	span      Span
	logger    Logger
	start     time.Time
	seen      int64
	succeeded int64
	failed    int64
	flushed   bool
}

// OpenBatch starts the batch span and returns the context carrying it along
// with the accumulator. Flush must be called on every exit path.
func OpenBatch(ctx context.Context, tracer Tracer, logger Logger, name string) (context.Context, *Batch) {
	ctx, span := tracer.Start(ctx, name,
		WithAttributes(
			String(AttrOperationName, name),
			String(AttrOperationType, OperationTypeBatch),
		),
	)
	return ctx, &Batch{
		span:   span,
		logger: logger,
		start:  time.Now(),
	}
}

// RecordItem counts one item outcome. Calling it after Flush is a warned
// no-op; instrumentation misuse never disturbs the batch operation itself.
func (b *Batch) RecordItem(ok bool) {
	if b == nil || b.span == nil {
		return
	}
	if b.flushed {
		b.warn("batch item recorded after flush")
		return
	}
	b.seen++
	if ok {
		b.succeeded++
	} else {
		b.failed++
	}
}

// Flush sets the final batch attributes and ends the span, with error status
// when any item failed. A second Flush is a warned no-op.
func (b *Batch) Flush() {
	if b == nil || b.span == nil {
		return
	}
	if b.flushed {
		b.warn("batch flushed twice")
		return
	}
	b.flushed = true

	b.span.SetAttributes(
		Int64(AttrBatchSize, b.seen),
		Int64(AttrBatchSuccessCount, b.succeeded),
		Int64(AttrBatchFailureCount, b.failed),
		Int64(AttrBatchDurationMS, time.Since(b.start).Milliseconds()),
	)
	if b.failed > 0 {
		b.span.SetStatus(StatusCodeError, "batch contains failed items")
	} else {
		b.span.SetStatus(StatusCodeOK, "")
	}
	b.span.End()
}

// Size returns the number of items recorded so far.
func (b *Batch) Size() int64 {
	if b == nil {
		return 0
	}
	return b.seen
}

func (b *Batch) warn(msg string) {
	if b.logger != nil {
		b.logger.Warn(context.Background(), msg)
	}
}
