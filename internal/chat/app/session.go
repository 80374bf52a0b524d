package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/repository"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/pkg/apperr"
	"gourdtalk_client/pkg/logger"
	"gourdtalk_client/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyMessage rejected client-side, never sent.
var ErrEmptyMessage = errors.New("empty message body")

// ErrSessionClosed returned when sending on a session that is not open.
var ErrSessionClosed = errors.New("chat session not open")

// Realtime is the slice of the transport manager a session needs. The
// session never touches the connection state, it only subscribes and
// emits.
type Realtime interface {
	Emit(msg domain.Message) error
	Subscribe(fn func(domain.Message)) func()
	State() domain.ConnState
}

// ChatSession is the facade a conversation screen talks to: it merges
// REST history with live events through the shared message store and
// exposes send/mark-read. One session per open conversation.
type ChatSession struct {
	api           repository.MessageAPI
	messages      *store.MessageStore
	tracker       *ReadStateTracker
	realtime      Realtime
	tokens        token.Provider
	currentUserID string

	mu            sync.Mutex
	counterpartID string
	epoch         uint64
	opened        bool
	unsubscribe   func()
	onMessage     func(domain.Message)
}

// NewChatSession create ChatSession. The credential provider and the
// current user id come in explicitly, the session reads no ambient
// state.
func NewChatSession(
	api repository.MessageAPI,
	messages *store.MessageStore,
	tracker *ReadStateTracker,
	realtime Realtime,
	tokens token.Provider,
	currentUserID string,
) *ChatSession {
	return &ChatSession{
		api:           api,
		messages:      messages,
		tracker:       tracker,
		realtime:      realtime,
		tokens:        tokens,
		currentUserID: currentUserID,
	}
}

// SetOnMessage registers the UI callback invoked for every message that
// becomes visible in the open conversation, both directions.
func (s *ChatSession) SetOnMessage(fn func(domain.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// Open loads history for the counterpart, seeds the store, subscribes
// to live events scoped to this conversation and marks the visible
// history read. A missing credential fails before any network call.
func (s *ChatSession) Open(ctx context.Context, counterpartID string) error {
	if tok, err := s.tokens.Token(); err != nil || tok == "" {
		return apperr.Wrap(apperr.KindAuthMissing, "open conversation", err)
	}

	s.mu.Lock()
	s.epoch++
	myEpoch := s.epoch
	s.counterpartID = counterpartID
	s.opened = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	history, err := s.api.ListMessages(ctx, s.currentUserID, counterpartID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != myEpoch || !s.opened {
		// conversation closed or reopened while the fetch was in flight
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for _, msg := range history {
		s.messages.Upsert(counterpartID, msg)
	}

	unsubscribe := s.realtime.Subscribe(func(msg domain.Message) {
		key, ok := msg.Counterpart(s.currentUserID)
		if !ok || key != counterpartID {
			return
		}
		s.mu.Lock()
		stale := s.epoch != myEpoch
		fn := s.onMessage
		s.mu.Unlock()
		if stale || fn == nil {
			return
		}
		fn(msg)
	})

	s.mu.Lock()
	if s.epoch != myEpoch {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	// best effort, an unread conversation stays unread until retried
	if err := s.tracker.MarkConversationRead(ctx, counterpartID); err != nil {
		logger.Log.Warn("initial read receipt failed",
			zap.String("counterpart", counterpartID), zap.Error(err))
	}
	return nil
}

// Send validates the body, echoes a pending message immediately, then
// confirms it via REST and announces it on the realtime channel. On
// REST failure the message stays visible in failed state for retry.
func (s *ChatSession) Send(ctx context.Context, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return domain.Message{}, ErrSessionClosed
	}
	counterpartID := s.counterpartID
	s.mu.Unlock()

	pending := domain.Message{
		ID:          "tmp-" + uuid.NewString(),
		SenderID:    s.currentUserID,
		RecipientID: counterpartID,
		Body:        body,
		Timestamp:   time.Now().UTC(),
		Delivery:    domain.DeliveryPending,
	}
	s.notify(s.messages.Upsert(counterpartID, pending))

	return s.confirm(ctx, counterpartID, pending)
}

// Retry re-sends a message that previously failed. The confirmed
// message replaces the failed local entry, no duplicate remains.
func (s *ChatSession) Retry(ctx context.Context, messageID string) (domain.Message, error) {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return domain.Message{}, ErrSessionClosed
	}
	counterpartID := s.counterpartID
	s.mu.Unlock()

	msg, found := s.messages.Find(counterpartID, messageID)
	if !found || msg.Delivery != domain.DeliveryFailed {
		return domain.Message{}, errors.New("no failed message to retry: " + messageID)
	}

	return s.confirm(ctx, counterpartID, msg)
}

// confirm runs the REST send for a local message and reconciles the
// result with the store.
func (s *ChatSession) confirm(ctx context.Context, counterpartID string, local domain.Message) (domain.Message, error) {
	confirmed, err := s.api.SendMessage(ctx, domain.SendPayload{
		Sender:    local.SenderID,
		Recipient: local.RecipientID,
		Body:      local.Body,
		Timestamp: local.Timestamp,
	})
	if err != nil {
		local.Delivery = domain.DeliveryFailed
		failed := s.messages.Upsert(counterpartID, local)
		s.notify(failed)
		return failed, err
	}

	confirmed.Delivery = domain.DeliverySent
	stored := s.messages.Upsert(counterpartID, confirmed)
	s.notify(stored)

	// announce only after the server accepted the message
	if err := s.realtime.Emit(stored); err != nil {
		logger.Log.Warn("sent message not announced, peers catch up via history",
			zap.String("message_id", stored.ID), zap.Error(err))
	}
	return stored, nil
}

// MarkRead issues a batched read receipt for the open conversation.
func (s *ChatSession) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	counterpartID := s.counterpartID
	s.mu.Unlock()

	return s.tracker.MarkConversationRead(ctx, counterpartID)
}

// Messages returns the cached conversation history in timestamp order.
func (s *ChatSession) Messages() []domain.Message {
	s.mu.Lock()
	counterpartID := s.counterpartID
	s.mu.Unlock()
	return s.messages.List(counterpartID)
}

// Close drops the conversation-scoped subscription. History stays
// cached for a fast re-open. Idempotent.
func (s *ChatSession) Close() {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return
	}
	s.opened = false
	s.epoch++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *ChatSession) notify(msg domain.Message) {
	s.mu.Lock()
	fn := s.onMessage
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
