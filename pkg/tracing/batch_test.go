package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recTracer records the spans it creates; enough to inspect the batch span
// without the SDK.
type recTracer struct {
	spans []*recSpan
}

func (t *recTracer) Start(ctx context.Context, _ string, opts ...SpanOption) (context.Context, Span) {
	cfg := NewSpanConfig(opts)
	span := newRecSpan()
	span.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, span)
	return ctx, span
}

func (t *recTracer) SpanFromContext(context.Context) Span { return newRecSpan() }

func (t *recTracer) ContextWithSpan(ctx context.Context, _ Span) context.Context { return ctx }

func TestBatch_CountersSumToSize(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)

	batch.RecordItem(true)
	batch.RecordItem(true)
	batch.RecordItem(false)
	batch.Flush()

	require.Len(t, tracer.spans, 1)
	span := tracer.spans[0]
	assert.Equal(t, int64(3), span.Attrs[AttrBatchSize])
	assert.Equal(t, int64(2), span.Attrs[AttrBatchSuccessCount])
	assert.Equal(t, int64(1), span.Attrs[AttrBatchFailureCount])
	assert.Equal(t, span.Attrs[AttrBatchSize],
		span.Attrs[AttrBatchSuccessCount].(int64)+span.Attrs[AttrBatchFailureCount].(int64))
	assert.Equal(t, 1, span.Ended)
}

func TestBatch_ErrorStatusWhenAnyItemFails(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)
	batch.RecordItem(false)
	batch.Flush()

	assert.Equal(t, StatusCodeError, tracer.spans[0].Status)
}

func TestBatch_OkStatusWhenAllSucceed(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)
	batch.RecordItem(true)
	batch.Flush()

	assert.Equal(t, StatusCodeOK, tracer.spans[0].Status)
}

func TestBatch_DoubleFlushIsNoOp(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)
	batch.RecordItem(true)
	batch.Flush()

	span := tracer.spans[0]
	batch.Flush()

	assert.Equal(t, 1, span.Ended, "second flush must not close the span again")
	assert.Equal(t, int64(1), span.Attrs[AttrBatchSize])
}

func TestBatch_RecordAfterFlushIgnored(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)
	batch.Flush()

	batch.RecordItem(true)
	assert.Equal(t, int64(0), batch.Size())
}

func TestBatch_NilBatchIsSafe(t *testing.T) {
	var batch *Batch
	batch.RecordItem(true)
	batch.Flush()
	assert.Equal(t, int64(0), batch.Size())
}

func TestBatch_OperationTypeAttribute(t *testing.T) {
	tracer := &recTracer{}
	_, batch := OpenBatch(context.Background(), tracer, NewNoOpLogger(), SpanDBCommit)
	batch.Flush()

	assert.Equal(t, OperationTypeBatch, tracer.spans[0].Attrs[AttrOperationType])
}
