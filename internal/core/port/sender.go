package port

import (
	"context"
	"stockrelay/internal/core/domain"
)

type Sender interface {
	// SendMessage queues a message for delivery and returns immediately.
	SendMessage(message *domain.OutboundMessage)
}

type Transport interface {
	// Connect establishes the chat session.
	Connect(ctx context.Context) error
	// Receive pushes decoded messages into inbound until the session ends or ctx is done.
	Receive(ctx context.Context, inbound chan<- domain.InboundMessage) error
	// Send delivers a single message. Implementations set message.Error when delivery failed.
	Send(ctx context.Context, message *domain.OutboundMessage) error
	// Close tears the session down.
	Close() error
}
