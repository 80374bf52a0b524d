package transport

import (
	"context"
	"encoding/json"
	"sync"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/pkg/apperr"
	"gourdtalk_client/pkg/config"
	"gourdtalk_client/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Manager owns the realtime channel lifecycle: connect, bounded
// reconnect after unexpected drops, and dispatch of inbound events into
// the message store. There is one Manager per app session and only it
// mutates the connection state.
type Manager struct {
	channel       EventChannel
	messages      *store.MessageStore
	currentUserID string
	cfg           config.ReconnectConfig

	mu           sync.Mutex
	state        domain.ConnState
	credential   string
	closed       bool
	nextSub      int
	messageSubs  map[int]func(domain.Message)
	presenceSubs map[int]func(userID string, online bool)
	stateSubs    map[int]func(domain.ConnState)
	offlineSubs  map[int]func()
}

// NewManager create Manager
func NewManager(channel EventChannel, messages *store.MessageStore, currentUserID string, cfg config.ReconnectConfig) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg = config.DefaultReconnect()
	}
	return &Manager{
		channel:       channel,
		messages:      messages,
		currentUserID: currentUserID,
		cfg:           cfg,
		state:         domain.StateDisconnected,
		messageSubs:   make(map[int]func(domain.Message)),
		presenceSubs:  make(map[int]func(string, bool)),
		stateSubs:     make(map[int]func(domain.ConnState)),
		offlineSubs:   make(map[int]func()),
	}
}

// State returns the current connection state.
func (m *Manager) State() domain.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open establishes the channel with the credential attached and starts
// dispatching inbound events. A missing credential is a precondition
// failure, not something to retry.
func (m *Manager) Open(credential string) error {
	if credential == "" {
		return apperr.New(apperr.KindAuthMissing, "open realtime channel")
	}

	m.mu.Lock()
	if m.state != domain.StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.credential = credential
	m.closed = false
	m.mu.Unlock()

	m.setState(domain.StateConnecting)

	if err := m.channel.Connect(context.Background(), credential); err != nil {
		m.setState(domain.StateDisconnected)
		return apperr.Wrap(apperr.KindChannelDropped, "realtime handshake", err)
	}

	m.setState(domain.StateConnected)
	go m.readPump()
	return nil
}

// Close tears the channel down and drops all listeners. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.messageSubs = make(map[int]func(domain.Message))
	m.presenceSubs = make(map[int]func(string, bool))
	m.stateSubs = make(map[int]func(domain.ConnState))
	m.offlineSubs = make(map[int]func())
	m.mu.Unlock()

	_ = m.channel.Disconnect()
	m.setState(domain.StateDisconnected)
}

// Emit announces a server-confirmed message to connected peers. Callers
// must only emit after the REST send resolved; a rejected message must
// never reach the channel.
func (m *Manager) Emit(msg domain.Message) error {
	if m.State() != domain.StateConnected {
		return apperr.New(apperr.KindChannelDropped, "emit while channel down")
	}
	if err := m.channel.Emit(domain.EventMessage, msg); err != nil {
		return apperr.Wrap(apperr.KindChannelDropped, "emit message", err)
	}
	return nil
}

// Subscribe registers a callback for inbound messages that already went
// through the store. Returns the unsubscribe func.
func (m *Manager) Subscribe(fn func(domain.Message)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.messageSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.messageSubs, id)
	}
}

// OnPresence registers a callback for online/offline events.
func (m *Manager) OnPresence(fn func(userID string, online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.presenceSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.presenceSubs, id)
	}
}

// OnStateChange registers a callback for connection state transitions.
func (m *Manager) OnStateChange(fn func(domain.ConnState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.stateSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateSubs, id)
	}
}

// OnOffline registers a callback fired once reconnection attempts are
// exhausted. REST traffic keeps working, only live delivery is gone.
func (m *Manager) OnOffline(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.offlineSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.offlineSubs, id)
	}
}

func (m *Manager) readPump() {
	for {
		ev, err := m.channel.Receive()
		if err != nil {
			if m.isClosed() {
				return
			}
			logger.Log.Warn("realtime channel dropped", zap.Error(err))
			if !m.reconnect() {
				return
			}
			continue
		}
		m.dispatch(ev)
	}
}

// reconnect retries the handshake with bounded exponential backoff.
// Returns false when the attempt ceiling is hit or the manager closed.
func (m *Manager) reconnect() bool {
	m.setState(domain.StateReconnecting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.InitialDelay
	b.MaxInterval = m.cfg.MaxDelay
	b.MaxElapsedTime = 0

	m.mu.Lock()
	credential := m.credential
	m.mu.Unlock()

	attempt := 0
	op := func() error {
		if m.isClosed() {
			return backoff.Permanent(ErrNotConnected)
		}
		attempt++
		err := m.channel.Connect(context.Background(), credential)
		if err != nil {
			logger.Log.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(b, uint64(m.cfg.MaxAttempts))); err != nil {
		m.setState(domain.StateDisconnected)
		if !m.isClosed() {
			logger.Log.Error("realtime channel offline, retries exhausted",
				zap.Int("attempts", attempt))
			for _, fn := range m.offlineListeners() {
				fn()
			}
		}
		return false
	}

	m.setState(domain.StateConnected)
	return true
}

func (m *Manager) dispatch(ev domain.Event) {
	switch ev.Name {
	case domain.EventMessage:
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			logger.Log.Warn("drop undecodable message event", zap.Error(err))
			return
		}
		key, ok := msg.Counterpart(m.currentUserID)
		if !ok {
			logger.Log.Warn("drop message without linkage to current user",
				zap.String("message_id", msg.ID))
			return
		}
		msg.Delivery = domain.DeliverySent
		stored := m.messages.Upsert(key, msg)
		for _, fn := range m.messageListeners() {
			fn(stored)
		}
	case domain.EventOnline, domain.EventOffline:
		var p domain.Presence
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			logger.Log.Warn("drop undecodable presence event", zap.Error(err))
			return
		}
		for _, fn := range m.presenceListeners() {
			fn(p.UserID, ev.Name == domain.EventOnline)
		}
	default:
		logger.Log.Debug("ignore unknown event", zap.String("event", ev.Name))
	}
}

func (m *Manager) setState(s domain.ConnState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	listeners := make([]func(domain.ConnState), 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) messageListeners() []func(domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(domain.Message), 0, len(m.messageSubs))
	for _, fn := range m.messageSubs {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) presenceListeners() []func(string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(string, bool), 0, len(m.presenceSubs))
	for _, fn := range m.presenceSubs {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) offlineListeners() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(), 0, len(m.offlineSubs))
	for _, fn := range m.offlineSubs {
		out = append(out, fn)
	}
	return out
}
