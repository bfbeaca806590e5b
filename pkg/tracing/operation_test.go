package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return FromTracerProvider(provider, "test", NewNoOpLogger()), exporter
}

func exportedSpan(t *testing.T, exporter *tracetest.InMemoryExporter, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not exported", name)
	return tracetest.SpanStub{}
}

func attrValue(s tracetest.SpanStub, key string) (any, bool) {
	for _, kv := range s.Attributes {
		if string(kv.Key) == key {
			return kv.Value.AsInterface(), true
		}
	}
	return nil, false
}

func TestDo_NestedSpansLinkParentChild(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	outer := Operation{Name: "outer"}
	inner := Operation{Name: "inner"}

	_, err := Do(context.Background(), tracer, NewNoOpLogger(), outer, nil, func(ctx context.Context) (int, error) {
		return Do(ctx, tracer, NewNoOpLogger(), inner, nil, func(ctx context.Context) (int, error) {
			return 42, nil
		})
	})
	require.NoError(t, err)

	outerSpan := exportedSpan(t, exporter, "outer")
	innerSpan := exportedSpan(t, exporter, "inner")

	assert.Equal(t, outerSpan.SpanContext.TraceID(), innerSpan.SpanContext.TraceID())
	assert.Equal(t, outerSpan.SpanContext.SpanID(), innerSpan.Parent.SpanID(),
		"child span's parent id must equal the enclosing span's id")
	assert.False(t, outerSpan.Parent.IsValid(), "outer span must be a trace root")
}

func TestDo_NoAmbientContextStartsNewRoot(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	err := Run(context.Background(), tracer, NewNoOpLogger(), Operation{Name: "detached"}, nil, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	span := exportedSpan(t, exporter, "detached")
	assert.True(t, span.SpanContext.TraceID().IsValid())
	assert.False(t, span.Parent.IsValid())
}

func TestDo_ErrorRoundTrip(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	sentinel := errors.New("x")
	out, err := Do(context.Background(), tracer, NewNoOpLogger(), Operation{Name: "failing"}, nil, func(ctx context.Context) (string, error) {
		return "partial", sentinel
	})

	require.Error(t, err)
	assert.Same(t, sentinel, err, "the original error value must reach the caller unchanged")
	assert.Equal(t, "partial", out)

	span := exportedSpan(t, exporter, "failing")
	assert.Equal(t, codes.Error, span.Status.Code)
	require.NotEmpty(t, span.Events)
	var msg string
	for _, kv := range span.Events[0].Attributes {
		if string(kv.Key) == "exception.message" {
			msg = kv.Value.AsString()
		}
	}
	assert.Equal(t, "x", msg)
}

func TestDo_ResultRuleSetsAttributes(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	op := Operation{
		Name: "with_result",
		Result: func(result any) ([]Field, bool) {
			return []Field{String(AttrOperationResult, result.(string))}, true
		},
	}
	_, err := Do(context.Background(), tracer, NewNoOpLogger(), op, nil, func(ctx context.Context) (string, error) {
		return ResultCreated, nil
	})
	require.NoError(t, err)

	span := exportedSpan(t, exporter, "with_result")
	value, ok := attrValue(span, AttrOperationResult)
	require.True(t, ok)
	assert.Equal(t, ResultCreated, value)
}

func TestDo_PanickingResultRuleIsIgnored(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	op := Operation{
		Name: "bad_result_rule",
		Result: func(any) ([]Field, bool) {
			panic("boom")
		},
	}
	out, err := Do(context.Background(), tracer, NewNoOpLogger(), op, nil, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	span := exportedSpan(t, exporter, "bad_result_rule")
	assert.Equal(t, codes.Ok, span.Status.Code)
}

func TestDo_AttributeRulesApplied(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	op := Operation{
		Name: "with_attrs",
		Attrs: []ExtractionRule{
			Rule("host", func(input any) ([]Field, bool) {
				return []Field{String(AttrHostID, input.(string))}, true
			}),
		},
	}
	err := Run(context.Background(), tracer, NewNoOpLogger(), op, "host-1", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	span := exportedSpan(t, exporter, "with_attrs")
	value, ok := attrValue(span, AttrHostID)
	require.True(t, ok)
	assert.Equal(t, "host-1", value)

	name, ok := attrValue(span, AttrOperationName)
	require.True(t, ok)
	assert.Equal(t, "with_attrs", name)
}

func TestDo_UnsampledSpanSkipsRuleEvaluation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.NeverSample()),
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	tracer := FromTracerProvider(provider, "test", NewNoOpLogger())

	var ruleCalls, resultCalls int
	op := Operation{
		Name: "unsampled",
		Attrs: []ExtractionRule{
			Rule("count", func(any) ([]Field, bool) {
				ruleCalls++
				return []Field{String("k", "v")}, true
			}),
		},
		Result: func(any) ([]Field, bool) {
			resultCalls++
			return nil, false
		},
	}

	out, err := Do(context.Background(), tracer, NewNoOpLogger(), op, "input", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out, "the operation itself still runs")
	assert.Zero(t, ruleCalls, "extraction rules must not run for unsampled spans")
	assert.Zero(t, resultCalls, "result rules must not run for unsampled spans")
	assert.Empty(t, exporter.GetSpans())
}

func TestSpan_EndIsIdempotent(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.Start(context.Background(), "once")
	span.End()
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "once", spans[0].Name)
}

func TestSpan_AttributesAfterEndDiscarded(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.Start(context.Background(), "closed")
	span.End()
	span.SetAttributes(String("late", "value"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	_, ok := attrValue(spans[0], "late")
	assert.False(t, ok, "attributes set after closure must be discarded")
}
