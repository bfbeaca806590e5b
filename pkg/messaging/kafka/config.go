package kafka

import (
	"fmt"
	"time"
)

// Config holds the Kafka client configuration shared by consumers and
// publishers.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
	// StartOffset: -1 newest, -2 oldest.
	StartOffset  int64
	BatchTimeout time.Duration
	RequiredAcks int
}

// Option configures a Config.
type Option func(*Config)

// WithBrokers sets the broker addresses.
func WithBrokers(brokers ...string) Option {
	return func(c *Config) {
		c.Brokers = brokers
	}
}

// WithTopic sets the topic.
func WithTopic(topic string) Option {
	return func(c *Config) {
		c.Topic = topic
	}
}

// WithGroupID sets the consumer group id.
func WithGroupID(groupID string) Option {
	return func(c *Config) {
		c.GroupID = groupID
	}
}

// WithStartOffset sets the starting offset (-1 newest, -2 oldest).
func WithStartOffset(offset int64) Option {
	return func(c *Config) {
		c.StartOffset = offset
	}
}

// WithMaxWait sets the maximum time the reader waits for new data.
func WithMaxWait(d time.Duration) Option {
	return func(c *Config) {
		c.MaxWait = d
	}
}

// NewConfig builds a validated Config from options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    -1,
		BatchTimeout:   100 * time.Millisecond,
		RequiredAcks:   -1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.MinBytes <= 0 || c.MaxBytes < c.MinBytes {
		return fmt.Errorf("invalid fetch byte range [%d, %d]", c.MinBytes, c.MaxBytes)
	}
	return nil
}
