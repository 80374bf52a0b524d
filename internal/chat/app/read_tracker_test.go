package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/store"

	"github.com/stretchr/testify/assert"
)

func seedUnread(messages *store.MessageStore) {
	base := time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)
	messages.Upsert("B", domain.Message{
		ID: "m1", SenderID: "B", RecipientID: "A", Body: "one",
		Timestamp: base, Delivery: domain.DeliverySent,
	})
	messages.Upsert("B", domain.Message{
		ID: "m2", SenderID: "B", RecipientID: "A", Body: "two",
		Timestamp: base.Add(time.Second), Delivery: domain.DeliverySent,
	})
}

func TestMarkConversationRead_BatchesAndFlips(t *testing.T) {
	ctx := context.Background()
	messages := store.NewMessageStore()
	seedUnread(messages)

	mockAPI := new(MockMessageAPI)
	mockAPI.On("MarkRead", ctx, []string{"m1", "m2"}).Return(nil)

	tracker := NewReadStateTracker(mockAPI, messages)
	err := tracker.MarkConversationRead(ctx, "B")

	assert.NoError(t, err)
	assert.False(t, tracker.Unread("B"))
	mockAPI.AssertExpectations(t)
}

// The second call with nothing new must not issue another REST call.
func TestMarkConversationRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	messages := store.NewMessageStore()
	seedUnread(messages)

	mockAPI := new(MockMessageAPI)
	mockAPI.On("MarkRead", ctx, []string{"m1", "m2"}).Return(nil)

	tracker := NewReadStateTracker(mockAPI, messages)
	assert.NoError(t, tracker.MarkConversationRead(ctx, "B"))
	assert.NoError(t, tracker.MarkConversationRead(ctx, "B"))

	mockAPI.AssertNumberOfCalls(t, "MarkRead", 1)
}

// No optimistic flip: a failed receipt leaves everything unread.
func TestMarkConversationRead_FailureLeavesUnread(t *testing.T) {
	ctx := context.Background()
	messages := store.NewMessageStore()
	seedUnread(messages)

	mockAPI := new(MockMessageAPI)
	mockAPI.On("MarkRead", ctx, []string{"m1", "m2"}).Return(errors.New("timeout"))

	tracker := NewReadStateTracker(mockAPI, messages)
	err := tracker.MarkConversationRead(ctx, "B")

	assert.Error(t, err)
	assert.True(t, tracker.Unread("B"))
	assert.Equal(t, []string{"m1", "m2"}, messages.UnreadIDsFrom("B"))
}

func TestMarkConversationRead_OwnMessagesDoNotCount(t *testing.T) {
	ctx := context.Background()
	messages := store.NewMessageStore()
	messages.Upsert("B", domain.Message{
		ID: "m1", SenderID: "A", RecipientID: "B", Body: "mine",
		Timestamp: time.Now().UTC(), Delivery: domain.DeliverySent,
	})

	mockAPI := new(MockMessageAPI)
	tracker := NewReadStateTracker(mockAPI, messages)

	assert.NoError(t, tracker.MarkConversationRead(ctx, "B"))
	mockAPI.AssertNotCalled(t, "MarkRead")
}
