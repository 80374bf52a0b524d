package repository

import (
	"sort"
	"sync"

	"gourdtalk_client/internal/chat/domain"

	"github.com/google/uuid"
)

// ChatStore is the in-memory persistence of the reference backend. It
// keeps a flat message log plus the user directory; history does not
// survive a restart, which is all a development server needs.
type ChatStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	messages []domain.Message
}

// NewChatStore create ChatStore
func NewChatStore() *ChatStore {
	return &ChatStore{users: make(map[string]domain.User)}
}

// UpsertUser registers or refreshes a directory entry.
func (s *ChatStore) UpsertUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// SetOnline flips a user's online flag.
func (s *ChatStore) SetOnline(id string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Online = online
		s.users[id] = u
	}
}

// User looks up one directory entry.
func (s *ChatStore) User(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Users lists the directory sorted by name.
func (s *ChatStore) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Append stores a message with a fresh server id and returns it.
func (s *ChatStore) Append(msg domain.Message) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.Read = false
	s.messages = append(s.messages, msg)
	return msg
}

// PairMessages returns the history between two users in timestamp
// order, either direction.
func (s *ChatStore) PairMessages(a, b string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// MarkRead flips the read flag of the given ids, returns how many
// messages changed.
func (s *ChatStore) MarkRead(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	updated := 0
	for i := range s.messages {
		if _, ok := idSet[s.messages[i].ID]; ok && !s.messages[i].Read {
			s.messages[i].Read = true
			updated++
		}
	}
	return updated
}

// ChatRecords exposes one raw record per directed (sender, recipient)
// pair carrying that direction's latest message. A conversation with
// traffic both ways therefore shows up twice, the same duplication the
// client-side aggregator collapses.
func (s *ChatStore) ChatRecords() []domain.RawChatRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]domain.Message)
	order := make([]string, 0)
	for _, m := range s.messages {
		key := m.SenderID + "|" + m.RecipientID
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || m.Timestamp.After(prev.Timestamp) {
			latest[key] = m
		}
	}

	out := make([]domain.RawChatRecord, 0, len(latest))
	for _, key := range order {
		m := latest[key]
		sender, ok := s.users[m.SenderID]
		if !ok {
			sender = domain.User{ID: m.SenderID}
		}
		user, ok := s.users[m.RecipientID]
		if !ok {
			user = domain.User{ID: m.RecipientID}
		}
		out = append(out, domain.RawChatRecord{
			ID:                   "chat-" + m.SenderID + "-" + m.RecipientID,
			Sender:               &sender,
			User:                 &user,
			LastMessage:          m.Body,
			LastMessageTimestamp: m.Timestamp,
		})
	}
	return out
}
