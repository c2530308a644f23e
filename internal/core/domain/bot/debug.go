package bot

import (
	"context"
	"fmt"
	"runtime"
	"runtime/metrics"
	"stockrelay/internal/core/domain"
	"stockrelay/internal/core/port"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const kb = 1024
const debugTemplate = `relay: %s
bots: %s
pending messages: %d
scheduled jobs: %d
uptime: %s
goroutines: %d
heap: %d KB
`

// Debug replies with the state of the relay, whatever the body.
type Debug struct {
	*Base
	stats   port.RelayStats
	started time.Time
}

func NewDebug(name string, stats port.RelayStats) *Debug {
	return &Debug{
		Base:    NewBase(name),
		stats:   stats,
		started: time.Now(),
	}
}

func (d *Debug) Respond(_ context.Context, message *domain.InboundMessage) (*domain.OutboundMessage, error) {
	log.Info().
		Str("bot", d.Name()).
		Str("sender", message.Sender).
		Msg("handling debug request")

	heap := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
	metrics.Read(heap)

	var heapKB uint64
	if heap[0].Value.Kind() == metrics.KindUint64 {
		heapKB = heap[0].Value.Uint64() / kb
	}

	return &domain.OutboundMessage{
		To:   message.Sender,
		Kind: message.Kind,
		Body: fmt.Sprintf(
			debugTemplate,
			d.stats.State(),
			strings.Join(d.stats.Bots(), ", "),
			d.stats.Pending(),
			d.stats.ScheduledJobs(),
			time.Since(d.started).Truncate(time.Second),
			runtime.NumGoroutine(),
			heapKB,
		),
	}, nil
}
