package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"gourdtalk_client/internal/chat/domain"

	"github.com/gorilla/websocket"
)

// ErrNotConnected returned when reading or emitting without a channel.
var ErrNotConnected = errors.New("channel not connected")

// EventChannel is the raw bidirectional event connection. The manager
// owns its lifecycle; everything else only emits or receives.
type EventChannel interface {
	Connect(ctx context.Context, credential string) error
	Disconnect() error
	Emit(event string, payload interface{}) error
	Receive() (domain.Event, error)
}

// WebsocketChannel implement EventChannel over a websocket with the
// credential attached to the handshake query.
type WebsocketChannel struct {
	wsURL  string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketChannel create WebsocketChannel
func NewWebsocketChannel(wsURL string, handshakeTimeout time.Duration) *WebsocketChannel {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	return &WebsocketChannel{
		wsURL:  wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Connect dials the websocket endpoint. An existing connection is torn
// down first so a reconnect never leaks the old conn.
func (c *WebsocketChannel) Connect(ctx context.Context, credential string) error {
	c.Disconnect()

	u := c.wsURL + "?auth=" + url.QueryEscape(credential)
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Disconnect closes the connection. Idempotent, never an error to call
// twice.
func (c *WebsocketChannel) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Emit writes one event envelope.
func (c *WebsocketChannel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(domain.Event{Name: event, Payload: raw})
}

// Receive blocks for the next inbound event.
func (c *WebsocketChannel) Receive() (domain.Event, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return domain.Event{}, ErrNotConnected
	}

	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}
