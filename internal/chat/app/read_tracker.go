package app

import (
	"context"

	"gourdtalk_client/internal/chat/repository"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/pkg/logger"

	"go.uber.org/zap"
)

// ReadStateTracker issues batched read receipts and keeps message read
// flags in sync with the server's acknowledgment. Read receipts are
// one-way: nothing is marked read before the server ack.
type ReadStateTracker struct {
	api      repository.MessageAPI
	messages *store.MessageStore
}

// NewReadStateTracker create ReadStateTracker
func NewReadStateTracker(api repository.MessageAPI, messages *store.MessageStore) *ReadStateTracker {
	return &ReadStateTracker{api: api, messages: messages}
}

// MarkConversationRead collects the unread messages received from the
// counterpart, sends one batched receipt and flips the flags only on
// success. With nothing unread it is a no-op and issues no REST call.
func (t *ReadStateTracker) MarkConversationRead(ctx context.Context, counterpartID string) error {
	ids := t.messages.UnreadIDsFrom(counterpartID)
	if len(ids) == 0 {
		return nil
	}

	if err := t.api.MarkRead(ctx, ids); err != nil {
		logger.Log.Warn("read receipt not delivered, conversation stays unread",
			zap.String("counterpart", counterpartID), zap.Int("count", len(ids)), zap.Error(err))
		return err
	}

	t.messages.MarkRead(counterpartID, ids)
	return nil
}

// Unread reports whether the conversation still holds unread messages
// from the counterpart.
func (t *ReadStateTracker) Unread(counterpartID string) bool {
	return t.messages.HasUnreadFrom(counterpartID)
}
