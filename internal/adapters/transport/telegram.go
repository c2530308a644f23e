package transport

import (
	"context"
	"stockrelay/internal/core/domain"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const TelegramMessageLimit = 4096

type telegramBot interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	Start(ctx context.Context)
}

type botFactory func(token string, handler bot.HandlerFunc) (telegramBot, error)

// Telegram is a chat transport over the Telegram Bot API. Chat IDs are used as sender and recipient identities.
type Telegram struct {
	token   string
	newBot  botFactory
	updates chan domain.InboundMessage

	mutex *sync.Mutex
	bot   telegramBot
}

func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:   token,
		newBot:  newTelegramBot,
		updates: make(chan domain.InboundMessage),
		mutex:   &sync.Mutex{},
	}
}

func newTelegramBot(token string, handler bot.HandlerFunc) (telegramBot, error) {
	b, err := bot.New(token, bot.WithDefaultHandler(handler))
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (t *Telegram) Connect(_ context.Context) error {
	b, err := t.newBot(t.token, t.handleUpdate)
	if err != nil {
		log.Err(err).Msg("failed initializing telegram bot")
		return err
	}

	t.mutex.Lock()
	t.bot = b
	t.mutex.Unlock()

	log.Info().Msg("telegram bot initialized")

	return nil
}

func (t *Telegram) Receive(ctx context.Context, inbound chan<- domain.InboundMessage) error {
	b, err := t.session()
	if err != nil {
		return err
	}

	polling := make(chan struct{})
	go func() {
		defer close(polling)
		b.Start(ctx)
	}()
	defer func() { <-polling }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-t.updates:
			select {
			case inbound <- message:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	message, ok := toInboundUpdate(update)
	if !ok {
		return
	}

	select {
	case t.updates <- message:
	case <-ctx.Done():
	}
}

func toInboundUpdate(update *models.Update) (domain.InboundMessage, bool) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return domain.InboundMessage{}, false
	}

	kind := domain.KindGroup
	if update.Message.Chat.Type == models.ChatTypePrivate {
		kind = domain.KindDirect
	}

	return domain.InboundMessage{
		Sender: strconv.FormatInt(update.Message.Chat.ID, 10),
		Kind:   kind,
		Body:   update.Message.Text,
	}, true
}

// Send delivers the message body to the chat ID in message.To, split into chunks the API accepts.
func (t *Telegram) Send(ctx context.Context, message *domain.OutboundMessage) error {
	b, err := t.session()
	if err != nil {
		message.Error = true
		return err
	}

	for _, chunk := range chunkText(message.Body, TelegramMessageLimit) {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: message.To,
			Text:   chunk,
		})
		if err != nil {
			message.Error = true
			log.Err(err).Str("id", message.ID).Str("to", message.To).Msg("failed to send telegram message")
			return err
		}
	}

	return nil
}

func (t *Telegram) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.bot = nil

	return nil
}

func (t *Telegram) session() (telegramBot, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.bot == nil {
		return nil, domain.ErrNotConnected
	}

	return t.bot, nil
}

// chunkText splits text into parts of at most limit bytes without breaking runes. Empty text yields one empty part.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}

	return append(chunks, text)
}
