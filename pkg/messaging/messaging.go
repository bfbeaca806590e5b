// Package messaging defines the transport-agnostic contracts between the
// inventory pipeline and the message-queue clients.
package messaging

import "context"

// Message is one inbound or outbound queue message.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Body      []byte
}

// ConsumeHandler processes one delivered message. Returning an error leaves
// the ack/retry decision to the consumer implementation.
type ConsumeHandler func(ctx context.Context, msg *Message) error

// Consumer delivers messages from a topic to registered handlers.
type Consumer interface {
	RegisterHandler(handler ConsumeHandler)
	Run(ctx context.Context) error
	Close() error
}

// Publisher delivers messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, key string, headers map[string]string, body []byte) error
	Close() error
}
