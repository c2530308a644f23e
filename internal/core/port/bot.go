package port

import (
	"context"
	"stockrelay/internal/core/domain"
)

type Bot interface {
	// Respond handles a routed message whose body has the bot name already stripped. A nil message means there is
	// nothing to send back.
	Respond(ctx context.Context, message *domain.InboundMessage) (*domain.OutboundMessage, error)
	// Name returns the routing key of the bot, matched case-insensitively against the first word of a message.
	Name() string
}

type Scheduled interface {
	// Schedule registers the recurring job of a bot with the given scheduler.
	Schedule(scheduler Scheduler)
}
