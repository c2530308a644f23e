package bot

import (
	"context"
	"fmt"
	"stockrelay/internal/core/domain"
	"stockrelay/internal/core/port"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

const (
	StatusCommand        = "status"
	DefaultAlertTemplate = "Product is available! Item: %s, stock: %d. Try ordering online."
	statusFailed         = "failed to check availability, try again later"
)

// Inventory answers status queries with a stock report and periodically alerts its subscribers about products
// that are in stock.
type Inventory struct {
	*Base
	checker       port.InventoryChecker
	sender        port.Sender
	delay         time.Duration
	subscribers   []string
	alertTemplate string

	mutex     *sync.Mutex
	scheduler port.Scheduler
	task      port.Task
	stopped   bool
}

func NewInventory(name string, checker port.InventoryChecker, sender port.Sender, delay time.Duration,
	subscribers []string, alertTemplate string) *Inventory {
	if !validAlertTemplate(alertTemplate) {
		log.Warn().Str("bot", name).Str("template", alertTemplate).Msg("invalid alert template, using default")
		alertTemplate = DefaultAlertTemplate
	}

	return &Inventory{
		Base:          NewBase(name),
		checker:       checker,
		sender:        sender,
		delay:         delay,
		subscribers:   subscribers,
		alertTemplate: alertTemplate,
		mutex:         &sync.Mutex{},
	}
}

// Respond replies to the sender with a stock report for "status" and with an empty body for anything else.
func (b *Inventory) Respond(ctx context.Context, message *domain.InboundMessage) (*domain.OutboundMessage, error) {
	l := log.With().
		Str("bot", b.Name()).
		Str("sender", message.Sender).
		Logger()

	reply := &domain.OutboundMessage{To: message.Sender, Kind: message.Kind}

	if strings.TrimSpace(message.Body) != StatusCommand {
		l.Debug().Str("body", message.Body).Msg("not a status query, sending empty reply")
		return reply, nil
	}

	l.Info().Msg("handling status query")

	products, err := b.checker.Check(ctx)
	if err != nil {
		l.Err(err).Msg("status check failed")
		reply.Body = statusFailed
		return reply, nil
	}

	reply.Body = RenderStatus(products)

	return reply, nil
}

// Schedule registers the first availability check. Every check reschedules the next one with the same delay.
func (b *Inventory) Schedule(scheduler port.Scheduler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.scheduler = scheduler
	b.stopped = false
	b.task = scheduler.ScheduleAfter(b.delay, b.CheckAvailability)
}

// Cancel stops the recurring check.
func (b *Inventory) Cancel() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stopped = true
	if b.task != nil {
		b.task.Cancel()
	}
}

// CheckAvailability sends one alert per subscriber for every product with stock. A failed check is logged and
// skipped; the next check is scheduled either way.
func (b *Inventory) CheckAvailability(ctx context.Context) {
	defer b.reschedule()

	l := log.With().
		Str("bot", b.Name()).
		Str("cycle", newCycleID()).
		Logger()

	products, err := b.checker.Check(ctx)
	if err != nil {
		l.Err(err).Msg("availability check failed, skipping cycle")
		return
	}

	alerts := 0
	for _, product := range products {
		stock := product.Availability.Stock
		if stock == 0 {
			continue
		}

		body := fmt.Sprintf(b.alertTemplate, product.ProductID, stock)
		for _, subscriber := range b.subscribers {
			b.sender.SendMessage(&domain.OutboundMessage{
				To:   subscriber,
				Kind: domain.KindDirect,
				Body: body,
			})
			alerts++
		}
	}

	l.Info().Int("products", len(products)).Int("alerts", alerts).Msg("availability check finished")
}

func (b *Inventory) reschedule() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.stopped || b.scheduler == nil {
		return
	}

	b.task = b.scheduler.ScheduleAfter(b.delay, b.CheckAvailability)
}

// validAlertTemplate reports whether template formats exactly an item id string and a stock count.
func validAlertTemplate(template string) bool {
	if template == "" {
		return false
	}

	return !strings.Contains(fmt.Sprintf(template, "item", 1), "%!")
}

func newCycleID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}

	return id.String()
}
