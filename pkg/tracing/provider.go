package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// ShutdownFunc flushes and releases a telemetry component.
type ShutdownFunc func(context.Context) error

// NopShutdown is the shutdown function of components with nothing to flush.
func NopShutdown(context.Context) error { return nil }

// NewProvider builds the tracer for the given configuration.
//
// When tracing is disabled or the sample rate is zero the no-op tracer is
// returned without constructing any SDK machinery, so instrumented call sites
// pay only the no-op fast path. Otherwise an SDK tracer provider is installed
// globally with the configured exporters, the deterministic head-based
// sampler, bounded batch export and W3C context propagation.
//
// A misconfigured or unreachable exporter endpoint never surfaces to span
// callers; finished spans are buffered and dropped under sustained pressure.
func NewProvider(ctx context.Context, cfg Config, opts ...TracerOption) (Tracer, ShutdownFunc, error) {
	pc := defaultProviderConfig()
	for _, opt := range opts {
		opt(pc)
	}

	if !cfg.Enabled || cfg.SampleRate == 0 {
		pc.logger.Info(ctx, "tracing disabled", Bool("enabled", cfg.Enabled), Float64("sample_rate", cfg.SampleRate))
		return NewNoOpTracer(), NopShutdown, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	res, err := newServiceResource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	exporters, err := buildExporters(ctx, cfg, pc)
	if err != nil {
		return nil, nil, err
	}
	if len(exporters) == 0 {
		pc.logger.Warn(ctx, "no span exporters configured, finished spans will be discarded")
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if pc.batchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(pc.batchSize))
	}
	if pc.batchDelay > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(pc.batchDelay))
	}

	limits := sdktrace.NewSpanLimits()
	limits.AttributeValueLengthLimit = pc.attrValueLimit

	sampler := pc.sampler
	if sampler == nil {
		sampler = NewSampler(cfg.SampleRate)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithRawSpanLimits(limits),
	}
	for _, exporter := range exporters {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter, batchOpts...))
	}
	for _, exporter := range pc.extraExporters {
		providerOpts = append(providerOpts, sdktrace.WithSyncer(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pc.shutdownTimeout)
		defer cancel()
		if err := provider.ForceFlush(ctx); err != nil {
			pc.logger.Warn(ctx, "span flush incomplete, remaining spans dropped", Error(err))
		}
		return provider.Shutdown(ctx)
	}

	pc.logger.Info(ctx, "tracing initialized",
		String("service", cfg.ServiceName),
		Float64("sample_rate", cfg.SampleRate))

	return FromTracerProvider(provider, cfg.ServiceName, pc.logger), shutdown, nil
}

// FromTracerProvider adapts any OpenTelemetry TracerProvider to the Tracer
// facade. Used by tests and by callers that manage the provider themselves.
func FromTracerProvider(tp trace.TracerProvider, serviceName string, logger Logger) Tracer {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &otelTracer{
		tracer: tp.Tracer(serviceName),
		logger: logger,
	}
}

func newServiceResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	}
	for key, value := range cfg.CustomAttributes() {
		attrs = append(attrs, attribute.String(key, value))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func buildExporters(ctx context.Context, cfg Config, pc *providerConfig) ([]sdktrace.SpanExporter, error) {
	var exporters []sdktrace.SpanExporter

	if cfg.OTLPEndpoint != "" {
		grpcOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		switch {
		case pc.insecure:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		case pc.tlsConfig != nil:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(pc.tlsConfig)))
		default:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize otlp grpc exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	if cfg.JaegerEndpoint != "" {
		httpOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(cfg.JaegerEndpoint),
		}
		if pc.insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize otlp http exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	if cfg.ConsoleExporter {
		exporter, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize console exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	return exporters, nil
}
