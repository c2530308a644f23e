package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"stockrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmppo/go-xmpp"
)

type MockXMPPClient struct {
	mock.Mock
	stanzas chan any
	once    sync.Once
}

func newMockXMPPClient(stanzas ...any) *MockXMPPClient {
	c := &MockXMPPClient{stanzas: make(chan any, len(stanzas))}
	for _, stanza := range stanzas {
		c.stanzas <- stanza
	}
	return c
}

func (m *MockXMPPClient) Recv() (any, error) {
	stanza, ok := <-m.stanzas
	if !ok {
		return nil, io.EOF
	}
	return stanza, nil
}

func (m *MockXMPPClient) Send(chat xmpp.Chat) (int, error) {
	args := m.Called(chat)
	return args.Int(0), args.Error(1)
}

func (m *MockXMPPClient) Close() error {
	m.once.Do(func() { close(m.stanzas) })
	return nil
}

func connected(t *testing.T, client *MockXMPPClient) *XMPP {
	t.Helper()

	x := NewXMPP(XMPPConfig{JID: "relay@example.org", Password: "secret"})
	x.dial = func(_ xmpp.Options) (xmppClient, error) {
		return client, nil
	}
	require.NoError(t, x.Connect(t.Context()))

	return x
}

func TestXMPP_Connect(t *testing.T) {
	t.Run("passes credentials", func(t *testing.T) {
		var got xmpp.Options
		x := NewXMPP(XMPPConfig{Host: "example.org:5222", JID: "relay@example.org", Password: "secret",
			Resource: "relay"})
		x.dial = func(options xmpp.Options) (xmppClient, error) {
			got = options
			return newMockXMPPClient(), nil
		}

		require.NoError(t, x.Connect(t.Context()))
		assert.Equal(t, "example.org:5222", got.Host)
		assert.Equal(t, "relay@example.org", got.User)
		assert.Equal(t, "secret", got.Password)
		assert.Equal(t, "relay", got.Resource)
		assert.True(t, got.StartTLS)
		assert.True(t, got.NoTLS)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		attempts := 0
		x := NewXMPP(XMPPConfig{JID: "relay@example.org", ConnectAttempts: 1})
		x.dial = func(_ xmpp.Options) (xmppClient, error) {
			attempts++
			return nil, errors.New("auth failure")
		}

		err := x.Connect(t.Context())
		require.ErrorContains(t, err, "auth failure")
		assert.Equal(t, 1, attempts)
	})
}

func TestXMPP_Receive(t *testing.T) {
	client := newMockXMPPClient(
		xmpp.Chat{Remote: "alice@example.org/phone", Type: "chat", Text: "ikea status"},
		xmpp.Presence{From: "bob@example.org"},
		xmpp.Chat{Remote: "alice@example.org/phone", Type: "chat", Text: ""},
		xmpp.Chat{Remote: "alice@example.org/phone", Type: "error", Text: "service-unavailable"},
		xmpp.Chat{Remote: "room@muc.example.org/carol", Type: "groupchat", Text: "IKEA status"},
	)
	x := connected(t, client)

	inbound := make(chan domain.InboundMessage, 10)
	done := make(chan error, 1)
	go func() {
		done <- x.Receive(t.Context(), inbound)
	}()

	var got []domain.InboundMessage
	for range 2 {
		select {
		case message := <-inbound:
			got = append(got, message)
		case <-time.After(time.Second):
			t.Fatal("message not received")
		}
	}

	assert.Equal(t, []domain.InboundMessage{
		{Sender: "alice@example.org/phone", Kind: domain.KindDirect, Body: "ikea status"},
		{Sender: "room@muc.example.org/carol", Kind: domain.KindGroup, Body: "IKEA status"},
	}, got)

	// stream ends
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		require.ErrorContains(t, err, "xmpp receive failed")
	case <-time.After(time.Second):
		t.Fatal("receive loop did not stop")
	}
}

func TestXMPP_Receive_StopsOnCancel(t *testing.T) {
	x := connected(t, newMockXMPPClient())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- x.Receive(ctx, make(chan domain.InboundMessage))
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("receive loop did not stop")
	}
}

func TestXMPP_Receive_NotConnected(t *testing.T) {
	x := NewXMPP(XMPPConfig{})

	err := x.Receive(t.Context(), make(chan domain.InboundMessage))
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestXMPP_Send(t *testing.T) {
	tests := []struct {
		name      string
		message   *domain.OutboundMessage
		wantChat  xmpp.Chat
		sendErr   error
		wantError bool
	}{
		{
			name:     "direct message",
			message:  &domain.OutboundMessage{ID: "1", To: "alice@example.org", Kind: domain.KindDirect, Body: "hi"},
			wantChat: xmpp.Chat{Remote: "alice@example.org", Type: "chat", Text: "hi"},
		},
		{
			name:     "group message",
			message:  &domain.OutboundMessage{ID: "2", To: "room@muc.example.org", Kind: domain.KindGroup, Body: "hi"},
			wantChat: xmpp.Chat{Remote: "room@muc.example.org", Type: "groupchat", Text: "hi"},
		},
		{
			name:     "kind defaults to chat",
			message:  &domain.OutboundMessage{ID: "3", To: "alice@example.org", Body: "hi"},
			wantChat: xmpp.Chat{Remote: "alice@example.org", Type: "chat", Text: "hi"},
		},
		{
			name:      "send fails",
			message:   &domain.OutboundMessage{ID: "4", To: "alice@example.org", Kind: domain.KindDirect, Body: "hi"},
			wantChat:  xmpp.Chat{Remote: "alice@example.org", Type: "chat", Text: "hi"},
			sendErr:   errors.New("broken pipe"),
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newMockXMPPClient()
			client.On("Send", tc.wantChat).Return(0, tc.sendErr).Once()
			x := connected(t, client)

			err := x.Send(t.Context(), tc.message)
			if tc.wantError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantError, tc.message.Error)
			client.AssertExpectations(t)
		})
	}
}

func TestXMPP_Send_NotConnected(t *testing.T) {
	x := NewXMPP(XMPPConfig{})
	message := &domain.OutboundMessage{To: "alice@example.org", Body: "hi"}

	err := x.Send(t.Context(), message)
	require.ErrorIs(t, err, domain.ErrNotConnected)
	assert.True(t, message.Error)
}

func TestXMPP_Close(t *testing.T) {
	x := connected(t, newMockXMPPClient())

	require.NoError(t, x.Close())
	require.NoError(t, x.Close())

	_, err := x.session()
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestXMPP_Options(t *testing.T) {
	t.Run("defaults to starttls with srv lookup", func(t *testing.T) {
		x := NewXMPP(XMPPConfig{JID: "relay@example.org", Password: "secret", Resource: "stockrelay"})

		assert.Equal(t, xmpp.Options{
			User:     "relay@example.org",
			Password: "secret",
			Resource: "stockrelay",
			NoTLS:    true,
			StartTLS: true,
			Session:  true,
			Status:   "chat",
		}, x.options())
	})

	t.Run("direct tls derives the tls port", func(t *testing.T) {
		x := NewXMPP(XMPPConfig{JID: "relay@example.org", DirectTLS: true})

		options := x.options()
		assert.Equal(t, "example.org:5223", options.Host)
		assert.False(t, options.NoTLS)
		assert.False(t, options.StartTLS)
	})

	t.Run("configured host is kept", func(t *testing.T) {
		x := NewXMPP(XMPPConfig{JID: "relay@example.org", Host: "xmpp.example.net:5222"})

		options := x.options()
		assert.Equal(t, "xmpp.example.net:5222", options.Host)
		assert.True(t, options.StartTLS)
	})
}

func Test_hostFromJID(t *testing.T) {
	tests := []struct {
		jid  string
		want string
	}{
		{jid: "relay@example.org", want: "example.org:5223"},
		{jid: "relay@example.org/stockrelay", want: "example.org:5223"},
		{jid: "example.org", want: "example.org:5223"},
		{jid: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.jid, func(t *testing.T) {
			assert.Equal(t, tc.want, hostFromJID(tc.jid, directTLSPort))
		})
	}
}

func TestNewXMPP_Defaults(t *testing.T) {
	x := NewXMPP(XMPPConfig{JID: "relay@example.org"})
	assert.Empty(t, x.config.Host)
	assert.Equal(t, uint(DefaultConnectAttempts), x.config.ConnectAttempts)

	x = NewXMPP(XMPPConfig{JID: "relay@example.org", Host: "xmpp.example.net:5223", ConnectAttempts: 2})
	assert.Equal(t, "xmpp.example.net:5223", x.config.Host)
	assert.Equal(t, uint(2), x.config.ConnectAttempts)
}
