package bot

import (
	"context"
	"stockrelay/internal/core/domain"
)

// Base is a named bot that never replies. Concrete bots embed it for their routing key.
type Base struct {
	name string
}

func NewBase(name string) *Base {
	return &Base{name: name}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Respond(_ context.Context, _ *domain.InboundMessage) (*domain.OutboundMessage, error) {
	return nil, nil
}
