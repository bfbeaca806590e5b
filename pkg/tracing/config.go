package tracing

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config is the environment-driven tracing configuration.
type Config struct {
	Enabled        bool   `envconfig:"OTEL_ENABLED" default:"false"`
	ServiceName    string `envconfig:"OTEL_SERVICE_NAME" default:"insights-host-inventory"`
	ServiceVersion string `envconfig:"OTEL_SERVICE_VERSION" default:"1.0.0"`
	Environment    string `envconfig:"OTEL_ENVIRONMENT" default:"development"`

	// JaegerEndpoint is an OTLP/HTTP collector endpoint ("http(s)://host:port").
	JaegerEndpoint string `envconfig:"OTEL_JAEGER_ENDPOINT"`
	// OTLPEndpoint is an OTLP/gRPC collector endpoint ("host:port").
	OTLPEndpoint    string `envconfig:"OTEL_OTLP_ENDPOINT"`
	ConsoleExporter bool   `envconfig:"OTEL_CONSOLE_EXPORTER" default:"false"`
	// LogEndpoint is an optional OTLP/HTTP endpoint for log export.
	LogEndpoint string `envconfig:"OTEL_LOG_ENDPOINT"`

	// SampleRate is the head-based sampling rate in [0, 1]. 0 disables span
	// construction entirely, 1 samples every trace.
	SampleRate float64 `envconfig:"OTEL_TRACE_SAMPLE_RATE" default:"0.1"`

	// CustomAttributesRaw holds extra resource attributes as "key=value,key=value".
	CustomAttributesRaw string `envconfig:"OTEL_CUSTOM_ATTRIBUTES"`

	InstrumentHTTP     bool `envconfig:"OTEL_INSTRUMENT_HTTP" default:"true"`
	InstrumentDatabase bool `envconfig:"OTEL_INSTRUMENT_DATABASE" default:"true"`
	InstrumentKafka    bool `envconfig:"OTEL_INSTRUMENT_KAFKA" default:"true"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load tracing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be within [0, 1], got %g", c.SampleRate)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

// CustomAttributes parses the raw "key=value,key=value" attribute list.
// Malformed entries are skipped rather than failing the whole list.
func (c Config) CustomAttributes() map[string]string {
	attrs := make(map[string]string)
	if c.CustomAttributesRaw == "" {
		return attrs
	}
	for _, pair := range strings.Split(c.CustomAttributesRaw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

// providerConfig holds provider options resolved from TracerOptions.
type providerConfig struct {
	insecure         bool
	tlsConfig        *tls.Config
	sampler          sdktrace.Sampler
	batchSize        int
	batchDelay       time.Duration
	attrValueLimit   int
	logger           Logger
	extraExporters   []sdktrace.SpanExporter
	shutdownTimeout  time.Duration
}

// TracerOption configures the tracer provider.
type TracerOption func(*providerConfig)

// WithInsecure disables TLS for exporter connections. Development only.
func WithInsecure() TracerOption {
	return func(c *providerConfig) {
		c.insecure = true
	}
}

// WithTLS sets a custom TLS configuration for the OTLP/gRPC exporter.
func WithTLS(tlsConfig *tls.Config) TracerOption {
	return func(c *providerConfig) {
		c.tlsConfig = tlsConfig
		c.insecure = false
	}
}

// WithSampler overrides the sampler built from Config.SampleRate.
func WithSampler(sampler sdktrace.Sampler) TracerOption {
	return func(c *providerConfig) {
		c.sampler = sampler
	}
}

// WithBatchSize sets the maximum export batch size.
func WithBatchSize(size int) TracerOption {
	return func(c *providerConfig) {
		c.batchSize = size
	}
}

// WithBatchDelay sets the delay between batch exports.
func WithBatchDelay(delay time.Duration) TracerOption {
	return func(c *providerConfig) {
		c.batchDelay = delay
	}
}

// WithAttributeValueLengthLimit sets the truncation limit for attribute
// values. Values beyond the limit are truncated, never rejected.
func WithAttributeValueLengthLimit(limit int) TracerOption {
	return func(c *providerConfig) {
		c.attrValueLimit = limit
	}
}

// WithProviderLogger sets the logger for provider diagnostics.
func WithProviderLogger(logger Logger) TracerOption {
	return func(c *providerConfig) {
		c.logger = logger
	}
}

// WithSpanExporter registers an additional span exporter. Used by tests to
// attach an in-memory exporter.
func WithSpanExporter(exporter sdktrace.SpanExporter) TracerOption {
	return func(c *providerConfig) {
		c.extraExporters = append(c.extraExporters, exporter)
	}
}

// WithShutdownTimeout bounds the final flush performed on shutdown.
func WithShutdownTimeout(timeout time.Duration) TracerOption {
	return func(c *providerConfig) {
		c.shutdownTimeout = timeout
	}
}

func defaultProviderConfig() *providerConfig {
	return &providerConfig{
		batchSize:       512,
		batchDelay:      5 * time.Second,
		attrValueLimit:  1024,
		logger:          NewNoOpLogger(),
		shutdownTimeout: 10 * time.Second,
	}
}
