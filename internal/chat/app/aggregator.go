package app

import (
	"sort"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/pkg/logger"

	"go.uber.org/zap"
)

// Aggregator collapses the raw chat feed into one conversation per
// counterpart. The backend may expose several chat documents for the
// same pair; only the one with the latest message survives.
type Aggregator struct {
	currentUserID string
	messages      *store.MessageStore
	onMalformed   func(domain.RawChatRecord)
}

// NewAggregator create Aggregator. messages may be nil when unread
// flags are not wanted. onMalformed is a diagnostic hook for records
// missing their user linkage; they are dropped, never surfaced as
// errors.
func NewAggregator(currentUserID string, messages *store.MessageStore, onMalformed func(domain.RawChatRecord)) *Aggregator {
	return &Aggregator{
		currentUserID: currentUserID,
		messages:      messages,
		onMalformed:   onMalformed,
	}
}

// Consolidate rebuilds the conversation list from scratch. Output is
// sorted by last message timestamp descending.
func (a *Aggregator) Consolidate(records []domain.RawChatRecord) []domain.Conversation {
	byCounterpart := make(map[string]domain.Conversation)
	order := make([]string, 0, len(records))

	for _, rec := range records {
		counterpart, ok := a.counterpartOf(rec)
		if !ok {
			a.reportMalformed(rec)
			continue
		}

		conv := domain.Conversation{
			Counterpart:          *counterpart,
			ChatID:               rec.ID,
			LastMessage:          rec.LastMessage,
			LastMessageTimestamp: rec.LastMessageTimestamp,
		}

		existing, seen := byCounterpart[counterpart.ID]
		if !seen {
			byCounterpart[counterpart.ID] = conv
			order = append(order, counterpart.ID)
			continue
		}
		// ties keep the earlier record, no tie-break data exists
		if conv.LastMessageTimestamp.After(existing.LastMessageTimestamp) {
			byCounterpart[counterpart.ID] = conv
		}
	}

	out := make([]domain.Conversation, 0, len(byCounterpart))
	for _, id := range order {
		conv := byCounterpart[id]
		if a.messages != nil {
			conv.Unread = a.messages.HasUnreadFrom(id)
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTimestamp.After(out[j].LastMessageTimestamp)
	})
	return out
}

// Apply folds one new message into an already consolidated list without
// a full rescan. lookup resolves counterpart ids to directory entries;
// unknown counterparts get a bare User with just the id.
func (a *Aggregator) Apply(conversations []domain.Conversation, msg domain.Message, lookup func(id string) (domain.User, bool)) []domain.Conversation {
	counterpartID, ok := msg.Counterpart(a.currentUserID)
	if !ok {
		logger.Log.Warn("skip message without linkage to current user",
			zap.String("message_id", msg.ID))
		return conversations
	}

	updated := false
	for i := range conversations {
		if conversations[i].Counterpart.ID != counterpartID {
			continue
		}
		if !msg.Timestamp.Before(conversations[i].LastMessageTimestamp) {
			conversations[i].LastMessage = msg.Body
			conversations[i].LastMessageTimestamp = msg.Timestamp
		}
		if a.messages != nil {
			conversations[i].Unread = a.messages.HasUnreadFrom(counterpartID)
		}
		updated = true
		break
	}

	if !updated {
		counterpart := domain.User{ID: counterpartID}
		if lookup != nil {
			if u, found := lookup(counterpartID); found {
				counterpart = u
			}
		}
		conv := domain.Conversation{
			Counterpart:          counterpart,
			LastMessage:          msg.Body,
			LastMessageTimestamp: msg.Timestamp,
		}
		if a.messages != nil {
			conv.Unread = a.messages.HasUnreadFrom(counterpartID)
		}
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTimestamp.After(conversations[j].LastMessageTimestamp)
	})
	return conversations
}

// counterpartOf resolves the other party of a raw record relative to
// the current user.
func (a *Aggregator) counterpartOf(rec domain.RawChatRecord) (*domain.User, bool) {
	if rec.Sender == nil || rec.User == nil {
		return nil, false
	}
	switch a.currentUserID {
	case rec.Sender.ID:
		return rec.User, true
	case rec.User.ID:
		return rec.Sender, true
	}
	// neither party is the current user, cross data
	return nil, false
}

func (a *Aggregator) reportMalformed(rec domain.RawChatRecord) {
	logger.Log.Debug("drop malformed chat record", zap.String("chat_id", rec.ID))
	if a.onMalformed != nil {
		a.onMalformed(rec)
	}
}
