package tracing

import "context"

// ResultRule derives attributes from the value returned by a decorated
// operation, typically operation.result. Same tolerance contract as
// ExtractionRule: return ok=false to omit.
type ResultRule func(result any) ([]Field, bool)

// Operation declaratively describes how one unit of business logic is traced:
// span name, kind, attribute extraction for its input and its result.
// The zero Kind is SpanKindInternal.
type Operation struct {
	Name   string
	Kind   SpanKind
	Attrs  []ExtractionRule
	Result ResultRule
}

// Do wraps fn in a span described by op. The current span context is resolved
// from ctx; when none is present a new trace root is started, so every
// instrumented call yields a valid, if possibly disconnected, trace. On error
// the exception is recorded, the span ends with error status and the original
// error is returned unchanged. Nesting Do calls links spans purely through
// the context, with no explicit plumbing in fn.
func Do[T any](ctx context.Context, tracer Tracer, logger Logger, op Operation, input any, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, op.Name,
		WithSpanKind(op.Kind),
		WithAttributes(String(AttrOperationName, op.Name)),
	)
	defer span.End()

	ApplyRules(ctx, span, logger, input, op.Attrs)

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(StatusCodeError, err.Error())
		return out, err
	}

	if op.Result != nil && span.IsRecording() {
		if fields, ok := runResultRule(ctx, logger, op, out); ok {
			span.SetAttributes(fields...)
		}
	}
	span.SetStatus(StatusCodeOK, "")
	return out, nil
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, tracer Tracer, logger Logger, op Operation, input any, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, tracer, logger, op, input, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func runResultRule(ctx context.Context, logger Logger, op Operation, result any) (fields []Field, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if logger != nil {
				logger.Warn(ctx, "result extraction rule panicked",
					String("operation", op.Name),
					Any("panic", r))
			}
		}
	}()
	fields, ok = op.Result(result)
	return fields, ok
}
