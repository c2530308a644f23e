package port

import "stockrelay/internal/core/domain"

// RelayStats reports the live state of the relay.
type RelayStats interface {
	State() domain.State
	Bots() []string
	Pending() int
	ScheduledJobs() int
}
