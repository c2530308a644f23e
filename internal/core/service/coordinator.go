package service

import (
	"context"
	"errors"
	"fmt"
	"stockrelay/internal/core/domain"
	"stockrelay/internal/core/port"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 100

// Coordinator routes inbound messages to registered bots and relays their replies and alerts to the transport.
type Coordinator struct {
	bots      []port.Bot
	scheduler *Scheduler
	transport port.Transport
	inbound   chan domain.InboundMessage
	state     atomic.Int32

	mutex   *sync.Mutex
	pending []*domain.OutboundMessage
	ready   chan struct{}
}

func NewCoordinator(transport port.Transport, scheduler *Scheduler, queueSize int) *Coordinator {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Coordinator{
		scheduler: scheduler,
		transport: transport,
		inbound:   make(chan domain.InboundMessage, queueSize),
		mutex:     &sync.Mutex{},
		pending:   make([]*domain.OutboundMessage, 0, queueSize),
		ready:     make(chan struct{}, 1),
	}
}

// AddBot appends a bot to the routing list. Names are not required to be unique. Bots with a recurring job get it
// registered with the scheduler. Must not be called after Start.
func (c *Coordinator) AddBot(bot port.Bot) {
	log.Info().Str("bot", bot.Name()).Msg("adding bot to coordinator")
	c.bots = append(c.bots, bot)

	if scheduled, ok := bot.(port.Scheduled); ok {
		scheduled.Schedule(c.scheduler)
	}
}

func (c *Coordinator) Bots() []string {
	names := make([]string, len(c.bots))
	for i, bot := range c.bots {
		names[i] = bot.Name()
	}

	return names
}

func (c *Coordinator) State() domain.State {
	return domain.State(c.state.Load())
}

func (c *Coordinator) ScheduledJobs() int {
	return c.scheduler.Len()
}

// Pending returns the number of outbound messages not yet handed to the transport.
func (c *Coordinator) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.pending)
}

// ProcessMessage hands the message to every bot whose name equals its first word. The bot sees the body with that
// word and one following space removed.
func (c *Coordinator) ProcessMessage(ctx context.Context, message domain.InboundMessage) {
	l := log.With().
		Str("sender", message.Sender).
		Str("kind", string(message.Kind)).
		Logger()

	if message.Error {
		l.Debug().Msg("dropping undecodable message")
		return
	}

	body := strings.ToLower(message.Body)
	name := domain.ParseCommand(body)

	l.Debug().Str("body", body).Msg("received message")

	matched := false
	for _, bot := range c.bots {
		if strings.ToLower(bot.Name()) != name {
			continue
		}
		matched = true

		routed := message
		routed.Body = domain.ParseCommandArgs(body)

		reply, err := bot.Respond(ctx, &routed)
		if err != nil {
			l.Err(err).Str("bot", bot.Name()).Msg("failed to respond to message")
			continue
		}

		if reply != nil {
			c.SendMessage(reply)
		}
	}

	if !matched {
		l.Debug().Str("command", name).Msg("no bot for message")
	}
}

// SendMessage queues a message for the transport and returns without waiting for delivery. The queue is unbounded so
// messages are never dropped.
func (c *Coordinator) SendMessage(message *domain.OutboundMessage) {
	if message.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			log.Warn().Err(err).Msg("failed to generate message id")
		} else {
			message.ID = id.String()
		}
	}

	c.mutex.Lock()
	c.pending = append(c.pending, message)
	c.mutex.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Start connects the transport and runs until its receive loop returns. The scheduler, dispatch and delivery loops
// run on their own goroutines and are stopped and awaited before Start returns.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(domain.StateIdle), int32(domain.StateConnecting)) {
		return fmt.Errorf("coordinator already started: %s", c.State())
	}
	defer c.state.Store(int32(domain.StateShutdown))

	log.Info().Msg("connecting transport")

	err := c.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	defer func() {
		if err := c.transport.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close transport")
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := &sync.WaitGroup{}
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.scheduler.Run(runCtx)
	}()

	go func() {
		defer wg.Done()
		c.dispatch(runCtx)
	}()

	go func() {
		defer wg.Done()
		c.deliver(runCtx)
	}()

	c.state.Store(int32(domain.StateRunning))
	log.Info().Strs("bots", c.Bots()).Msg("relay running")

	err = c.transport.Receive(runCtx, c.inbound)

	cancel()
	wg.Wait()

	log.Info().Msg("relay stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("transport receive loop failed: %w", err)
	}

	return nil
}

func (c *Coordinator) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-c.inbound:
			c.ProcessMessage(ctx, message)
		}
	}
}

func (c *Coordinator) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ready:
		}

		for _, message := range c.drain() {
			if ctx.Err() != nil {
				return
			}

			err := c.transport.Send(ctx, message)
			if err != nil {
				log.Err(err).Str("id", message.ID).Str("to", message.To).Msg("failed to deliver message")
			}
		}
	}
}

// drain takes every queued message in enqueue order.
func (c *Coordinator) drain() []*domain.OutboundMessage {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	messages := c.pending
	c.pending = nil

	return messages
}
