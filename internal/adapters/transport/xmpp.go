package transport

import (
	"context"
	"fmt"
	"net"
	"stockrelay/internal/core/domain"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"
	"github.com/xmppo/go-xmpp"
)

const (
	DefaultConnectAttempts = 5
	directTLSPort          = "5223"
)

type XMPPConfig struct {
	Host            string
	JID             string
	Password        string
	Resource        string
	DirectTLS       bool
	ConnectAttempts uint
}

type xmppClient interface {
	Recv() (any, error)
	Send(chat xmpp.Chat) (int, error)
	Close() error
}

type dialer func(options xmpp.Options) (xmppClient, error)

// XMPP is a chat transport over an XMPP session secured with TLS. The session upgrades with STARTTLS unless
// DirectTLS is set. An empty Host lets the client resolve the server through DNS SRV records.
type XMPP struct {
	config XMPPConfig
	dial   dialer

	mutex  *sync.Mutex
	client xmppClient
}

func NewXMPP(config XMPPConfig) *XMPP {
	if config.ConnectAttempts == 0 {
		config.ConnectAttempts = DefaultConnectAttempts
	}

	if config.Host == "" && config.DirectTLS {
		config.Host = hostFromJID(config.JID, directTLSPort)
	}

	return &XMPP{
		config: config,
		dial:   dialXMPP,
		mutex:  &sync.Mutex{},
	}
}

// hostFromJID returns the domain part of a JID joined with port.
func hostFromJID(jid, port string) string {
	server := jid
	if at := strings.Index(server, "@"); at >= 0 {
		server = server[at+1:]
	}
	if slash := strings.Index(server, "/"); slash >= 0 {
		server = server[:slash]
	}
	if server == "" {
		return ""
	}

	return net.JoinHostPort(server, port)
}

func dialXMPP(options xmpp.Options) (xmppClient, error) {
	client, err := options.NewClient()
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (x *XMPP) options() xmpp.Options {
	return xmpp.Options{
		Host:     x.config.Host,
		User:     x.config.JID,
		Password: x.config.Password,
		Resource: x.config.Resource,
		NoTLS:    !x.config.DirectTLS,
		StartTLS: !x.config.DirectTLS,
		Session:  true,
		Status:   "chat",
	}
}

func (x *XMPP) Connect(ctx context.Context) error {
	options := x.options()

	var client xmppClient
	err := retry.Do(
		func() error {
			var err error
			client, err = x.dial(options)
			return err
		},
		retry.Attempts(x.config.ConnectAttempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("jid", x.config.JID).Msg("xmpp connect failed, retrying")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to xmpp server: %w", err)
	}

	x.mutex.Lock()
	x.client = client
	x.mutex.Unlock()

	log.Info().Str("jid", x.config.JID).Msg("xmpp session established")

	return nil
}

func (x *XMPP) Receive(ctx context.Context, inbound chan<- domain.InboundMessage) error {
	client, err := x.session()
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		// unblocks Recv
		_ = x.Close()
	})
	defer stop()

	for {
		stanza, err := client.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xmpp receive failed: %w", err)
		}

		chat, ok := stanza.(xmpp.Chat)
		if !ok {
			continue
		}

		message, ok := toInbound(chat)
		if !ok {
			continue
		}

		select {
		case inbound <- message:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// toInbound converts a chat stanza. Stanzas without a body (typing notifications, receipts) are skipped; error
// stanzas are logged and skipped.
func toInbound(chat xmpp.Chat) (domain.InboundMessage, bool) {
	switch chat.Type {
	case "error":
		log.Warn().Str("from", chat.Remote).Str("text", chat.Text).Msg("received error stanza")
		return domain.InboundMessage{}, false
	case "groupchat":
		if chat.Text == "" {
			return domain.InboundMessage{}, false
		}
		return domain.InboundMessage{Sender: chat.Remote, Kind: domain.KindGroup, Body: chat.Text}, true
	case "", "chat", "normal":
		if chat.Text == "" {
			return domain.InboundMessage{}, false
		}
		return domain.InboundMessage{Sender: chat.Remote, Kind: domain.KindDirect, Body: chat.Text}, true
	default:
		log.Debug().Str("type", chat.Type).Str("from", chat.Remote).Msg("ignoring stanza")
		return domain.InboundMessage{}, false
	}
}

func (x *XMPP) Send(_ context.Context, message *domain.OutboundMessage) error {
	client, err := x.session()
	if err != nil {
		message.Error = true
		return err
	}

	kind := message.Kind
	if kind == "" {
		kind = domain.KindDirect
	}

	x.mutex.Lock()
	_, err = client.Send(xmpp.Chat{
		Remote: message.To,
		Type:   string(kind),
		Text:   message.Body,
	})
	x.mutex.Unlock()

	if err != nil {
		message.Error = true
		log.Err(err).Str("id", message.ID).Str("to", message.To).Msg("failed to send xmpp message")
		return fmt.Errorf("xmpp send failed: %w", err)
	}

	log.Debug().Str("id", message.ID).Str("to", message.To).Msg("sent xmpp message")

	return nil
}

func (x *XMPP) Close() error {
	x.mutex.Lock()
	client := x.client
	x.client = nil
	x.mutex.Unlock()

	if client == nil {
		return nil
	}

	return client.Close()
}

func (x *XMPP) session() (xmppClient, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if x.client == nil {
		return nil, domain.ErrNotConnected
	}

	return x.client, nil
}
