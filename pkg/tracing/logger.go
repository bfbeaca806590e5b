package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Logger provides structured logging. Instrumentation-internal diagnostics
// (double close, flush without open, dropped extraction rules) are reported
// here and never surfaced to business code.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, err error, msg string, fields ...Field)
	With(fields ...Field) Logger
}

type slogLogger struct {
	slogger *slog.Logger
}

// NewLogger creates a logger exporting through the OTLP/HTTP log pipeline
// configured by cfg.LogEndpoint ("http(s)://host:port"). The returned
// shutdown function flushes buffered records.
func NewLogger(ctx context.Context, cfg Config) (Logger, ShutdownFunc, error) {
	res, err := newServiceResource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	httpOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(cfg.LogEndpoint),
	}

	exporter, err := otlploghttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)

	shutdown := func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	}

	return &slogLogger{
		slogger: otelslog.NewLogger(cfg.ServiceName, otelslog.WithLoggerProvider(provider)),
	}, shutdown, nil
}

// NewStdoutLogger creates a logger writing structured text to stderr. Used
// when no log endpoint is configured.
func NewStdoutLogger() Logger {
	return &slogLogger{
		slogger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.slogger.DebugContext(ctx, msg, slogAttrs(fields)...)
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.slogger.InfoContext(ctx, msg, slogAttrs(fields)...)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.slogger.WarnContext(ctx, msg, slogAttrs(fields)...)
}

func (l *slogLogger) Error(ctx context.Context, err error, msg string, fields ...Field) {
	if err != nil {
		fields = append(fields, Error(err))
	}
	l.slogger.ErrorContext(ctx, msg, slogAttrs(fields)...)
}

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{slogger: l.slogger.With(slogAttrs(fields)...)}
}

func slogAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

// noopLogger discards everything.
type noopLogger struct{}

// NewNoOpLogger creates a logger that discards all records.
func NewNoOpLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(context.Context, string, ...Field)        {}
func (noopLogger) Info(context.Context, string, ...Field)         {}
func (noopLogger) Warn(context.Context, string, ...Field)         {}
func (noopLogger) Error(context.Context, error, string, ...Field) {}
func (l noopLogger) With(...Field) Logger                         { return l }
