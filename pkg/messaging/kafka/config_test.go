package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(WithBrokers("localhost:9092"), WithTopic("events"))
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "events", cfg.Topic)
	assert.Equal(t, 1, cfg.MinBytes)
	assert.Equal(t, 10<<20, cfg.MaxBytes)
	assert.Equal(t, int64(-1), cfg.StartOffset)
	assert.Equal(t, 500*time.Millisecond, cfg.MaxWait)
}

func TestNewConfig_Options(t *testing.T) {
	cfg, err := NewConfig(
		WithBrokers("b1:9092", "b2:9092"),
		WithTopic("ingress"),
		WithGroupID("inventory-mq"),
		WithStartOffset(-2),
		WithMaxWait(time.Second),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Brokers)
	assert.Equal(t, "inventory-mq", cfg.GroupID)
	assert.Equal(t, int64(-2), cfg.StartOffset)
	assert.Equal(t, time.Second, cfg.MaxWait)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{name: "missing brokers", opts: []Option{WithTopic("t")}, want: "broker"},
		{name: "missing topic", opts: []Option{WithBrokers("b:9092")}, want: "topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_FetchByteRange(t *testing.T) {
	cfg := &Config{Brokers: []string{"b:9092"}, Topic: "t", MinBytes: 100, MaxBytes: 10}
	assert.Error(t, cfg.Validate())
}
