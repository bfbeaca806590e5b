package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "insights-host-inventory", cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.InDelta(t, 0.1, cfg.SampleRate, 1e-9)
	assert.True(t, cfg.InstrumentDatabase)
	assert.True(t, cfg.InstrumentKafka)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "inventory-mq")
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "0.5")
	t.Setenv("OTEL_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_INSTRUMENT_KAFKA", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "inventory-mq", cfg.ServiceName)
	assert.InDelta(t, 0.5, cfg.SampleRate, 1e-9)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.False(t, cfg.InstrumentKafka)
}

func TestLoadConfig_RejectsOutOfRangeSampleRate(t *testing.T) {
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "1.5")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample rate")
}

func TestValidate_SampleRateBounds(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantErr bool
	}{
		{name: "zero", rate: 0, wantErr: false},
		{name: "one", rate: 1, wantErr: false},
		{name: "half", rate: 0.5, wantErr: false},
		{name: "negative", rate: -0.1, wantErr: true},
		{name: "above one", rate: 1.1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ServiceName: "test", SampleRate: tt.rate}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCustomAttributes_ParsesKeyValueList(t *testing.T) {
	cfg := Config{CustomAttributesRaw: "team=platform, region=us-east-1,env=prod"}

	attrs := cfg.CustomAttributes()
	assert.Equal(t, map[string]string{
		"team":   "platform",
		"region": "us-east-1",
		"env":    "prod",
	}, attrs)
}

func TestCustomAttributes_SkipsMalformedEntries(t *testing.T) {
	cfg := Config{CustomAttributesRaw: "ok=1,novalue,=nokey,also_ok=2,"}

	attrs := cfg.CustomAttributes()
	assert.Equal(t, map[string]string{
		"ok":      "1",
		"also_ok": "2",
	}, attrs)
}

func TestCustomAttributes_Empty(t *testing.T) {
	assert.Empty(t, Config{}.CustomAttributes())
}
