package store

import (
	"sort"
	"sync"
	"time"

	"gourdtalk_client/internal/chat/domain"
)

// DefaultMatchWindow is the timestamp tolerance used to pair a locally
// created message with its server-confirmed twin when the client does
// not yet know the server id.
const DefaultMatchWindow = 5 * time.Second

// MessageStore keeps the per-conversation message log: ordered by
// timestamp ascending, unique by id. It is the single serialization
// point for both the REST backfill and the realtime push, so every
// message must enter through Upsert.
type MessageStore struct {
	mu            sync.Mutex
	conversations map[string][]domain.Message
	matchWindow   time.Duration
}

// NewMessageStore create MessageStore
func NewMessageStore() *MessageStore {
	return &MessageStore{
		conversations: make(map[string][]domain.Message),
		matchWindow:   DefaultMatchWindow,
	}
}

// Upsert inserts msg into the conversation keyed by key, or merges it
// into an already-stored message with the same id. A server-confirmed
// message also replaces a matching local unconfirmed one (same parties,
// same body, timestamps within the match window). Merging never
// regresses delivery state or flips read back to false. Returns the
// stored message.
func (s *MessageStore) Upsert(key string, msg domain.Message) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[key]

	for i := range msgs {
		if msgs[i].ID == msg.ID {
			if msg.Delivery.MoreAdvancedThan(msgs[i].Delivery) {
				msgs[i].Delivery = msg.Delivery
			}
			if msg.Read {
				msgs[i].Read = true
			}
			return msgs[i]
		}
	}

	if msg.Delivery == domain.DeliverySent {
		for i := range msgs {
			if s.isLocalTwin(msgs[i], msg) {
				merged := msg
				merged.Read = merged.Read || msgs[i].Read
				msgs = append(msgs[:i], msgs[i+1:]...)
				s.conversations[key] = insertSorted(msgs, merged)
				return merged
			}
		}
	}

	s.conversations[key] = insertSorted(msgs, msg)
	return msg
}

// isLocalTwin reports whether stored is the local unconfirmed echo of
// the confirmed incoming message.
func (s *MessageStore) isLocalTwin(stored, incoming domain.Message) bool {
	if stored.Delivery == domain.DeliverySent {
		return false
	}
	if stored.SenderID != incoming.SenderID || stored.RecipientID != incoming.RecipientID {
		return false
	}
	if stored.Body != incoming.Body {
		return false
	}
	diff := stored.Timestamp.Sub(incoming.Timestamp)
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.matchWindow
}

// List returns a copy of the conversation's messages in timestamp order.
func (s *MessageStore) List(key string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[key]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Find looks up one message by id within a conversation.
func (s *MessageStore) Find(key, id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.conversations[key] {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// MarkRead flips the read flag of the given message ids. Read is
// monotonic, there is no way back to unread.
func (s *MessageStore) MarkRead(key string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	msgs := s.conversations[key]
	for i := range msgs {
		if _, ok := idSet[msgs[i].ID]; ok {
			msgs[i].Read = true
		}
	}
}

// UnreadIDsFrom returns ids of messages sent by the counterpart that
// are still unread. The conversation key is the counterpart id.
func (s *MessageStore) UnreadIDsFrom(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, m := range s.conversations[key] {
		if m.SenderID == key && !m.Read {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// HasUnreadFrom reports whether the counterpart has any unread message
// in this conversation.
func (s *MessageStore) HasUnreadFrom(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.conversations[key] {
		if m.SenderID == key && !m.Read {
			return true
		}
	}
	return false
}

// Remove clears one conversation's history.
func (s *MessageStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, key)
}

// Clear drops all history, used on logout.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string][]domain.Message)
}

// insertSorted places msg before the first later timestamp, so equal
// timestamps keep insertion order.
func insertSorted(msgs []domain.Message, msg domain.Message) []domain.Message {
	i := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].Timestamp.After(msg.Timestamp)
	})
	msgs = append(msgs, domain.Message{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = msg
	return msgs
}
