package app

import (
	"context"
	"testing"
	"time"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/internal/chat/store"
	"gourdtalk_client/pkg/apperr"
	"gourdtalk_client/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSession(api *MockMessageAPI, messages *store.MessageStore, rt *fakeRealtime) *ChatSession {
	tracker := NewReadStateTracker(api, messages)
	return NewChatSession(api, messages, tracker, rt, token.StaticProvider("jwt-token"), "A")
}

func TestOpen_SeedsHistoryAndMarksRead(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)

	history := []domain.Message{
		{ID: "m1", SenderID: "B", RecipientID: "A", Body: "hey", Timestamp: base, Delivery: domain.DeliverySent},
		{ID: "m2", SenderID: "A", RecipientID: "B", Body: "hi", Timestamp: base.Add(time.Second), Delivery: domain.DeliverySent},
	}

	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return(history, nil)
	mockAPI.On("MarkRead", ctx, []string{"m1"}).Return(nil)

	messages := store.NewMessageStore()
	rt := newFakeRealtime()
	s := newSession(mockAPI, messages, rt)

	require.NoError(t, s.Open(ctx, "B"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, msgs[0].Read)
	assert.Equal(t, 1, rt.subscriberCount())
	mockAPI.AssertExpectations(t)
}

func TestOpen_WithoutCredentialFails(t *testing.T) {
	messages := store.NewMessageStore()
	mockAPI := new(MockMessageAPI)
	tracker := NewReadStateTracker(mockAPI, messages)
	s := NewChatSession(mockAPI, messages, tracker, newFakeRealtime(), token.StaticProvider(""), "A")

	err := s.Open(context.Background(), "B")

	assert.True(t, apperr.IsKind(err, apperr.KindAuthMissing))
	mockAPI.AssertNotCalled(t, "ListMessages")
}

func TestSend_RejectsEmptyBody(t *testing.T) {
	ctx := context.Background()
	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return([]domain.Message{}, nil)

	s := newSession(mockAPI, store.NewMessageStore(), newFakeRealtime())
	require.NoError(t, s.Open(ctx, "B"))

	_, err := s.Send(ctx, "   \t ")

	assert.ErrorIs(t, err, ErrEmptyMessage)
	mockAPI.AssertNotCalled(t, "SendMessage")
}

func TestSend_ConfirmsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return([]domain.Message{}, nil)

	confirmed := domain.Message{
		ID: "srv-1", SenderID: "A", RecipientID: "B", Body: "hello",
		Timestamp: time.Now().UTC(), Delivery: domain.DeliverySent,
	}
	mockAPI.On("SendMessage", ctx, mock.Anything).Return(confirmed, nil)

	messages := store.NewMessageStore()
	rt := newFakeRealtime()
	s := newSession(mockAPI, messages, rt)
	require.NoError(t, s.Open(ctx, "B"))

	var echoes []domain.Message
	s.SetOnMessage(func(m domain.Message) { echoes = append(echoes, m) })

	sent, err := s.Send(ctx, "hello")

	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)
	assert.Equal(t, domain.DeliverySent, sent.Delivery)

	// optimistic pending echo first, confirmed second
	require.Len(t, echoes, 2)
	assert.Equal(t, domain.DeliveryPending, echoes[0].Delivery)
	assert.Equal(t, domain.DeliverySent, echoes[1].Delivery)

	// the pending twin was replaced, not duplicated
	assert.Len(t, s.Messages(), 1)
	assert.Equal(t, 1, rt.emittedCount())
}

// Offline send flow: the message stays visible as failed, a retry
// confirms it with the server id and no duplicate remains.
func TestSend_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return([]domain.Message{}, nil)
	mockAPI.On("SendMessage", ctx, mock.Anything).
		Return(nil, apperr.New(apperr.KindNetworkFailure, "POST /chat/messages")).Once()

	messages := store.NewMessageStore()
	rt := newFakeRealtime()
	s := newSession(mockAPI, messages, rt)
	require.NoError(t, s.Open(ctx, "B"))

	failed, err := s.Send(ctx, "hi")

	assert.Error(t, err)
	assert.Equal(t, domain.DeliveryFailed, failed.Delivery)
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, domain.DeliveryFailed, s.Messages()[0].Delivery)
	assert.Equal(t, 0, rt.emittedCount())

	confirmed := domain.Message{
		ID: "srv-7", SenderID: "A", RecipientID: "B", Body: "hi",
		Timestamp: failed.Timestamp.Add(time.Second), Delivery: domain.DeliverySent,
	}
	mockAPI.On("SendMessage", ctx, mock.Anything).Return(confirmed, nil).Once()

	sent, err := s.Retry(ctx, failed.ID)

	require.NoError(t, err)
	assert.Equal(t, "srv-7", sent.ID)
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "srv-7", s.Messages()[0].ID)
	assert.Equal(t, domain.DeliverySent, s.Messages()[0].Delivery)
}

// A REST send still succeeds while the realtime channel is down; only
// the announcement is degraded.
func TestSend_SucceedsWithChannelDown(t *testing.T) {
	ctx := context.Background()
	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return([]domain.Message{}, nil)

	confirmed := domain.Message{
		ID: "srv-2", SenderID: "A", RecipientID: "B", Body: "offline-ish",
		Timestamp: time.Now().UTC(), Delivery: domain.DeliverySent,
	}
	mockAPI.On("SendMessage", ctx, mock.Anything).Return(confirmed, nil)

	rt := newFakeRealtime()
	rt.emitErr = apperr.New(apperr.KindChannelDropped, "emit while channel down")

	s := newSession(mockAPI, store.NewMessageStore(), rt)
	require.NoError(t, s.Open(ctx, "B"))

	sent, err := s.Send(ctx, "offline-ish")

	require.NoError(t, err)
	assert.Equal(t, "srv-2", sent.ID)
}

func TestClose_StopsDeliveryButKeepsHistory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)

	history := []domain.Message{
		{ID: "m1", SenderID: "A", RecipientID: "B", Body: "kept", Timestamp: base, Delivery: domain.DeliverySent},
	}
	mockAPI := new(MockMessageAPI)
	mockAPI.On("ListMessages", ctx, "A", "B").Return(history, nil)

	messages := store.NewMessageStore()
	rt := newFakeRealtime()
	s := newSession(mockAPI, messages, rt)
	require.NoError(t, s.Open(ctx, "B"))

	var delivered []domain.Message
	s.SetOnMessage(func(m domain.Message) { delivered = append(delivered, m) })

	s.Close()
	s.Close()

	rt.push(domain.Message{
		ID: "m2", SenderID: "B", RecipientID: "A", Body: "late",
		Timestamp: base.Add(time.Minute), Delivery: domain.DeliverySent,
	})

	assert.Empty(t, delivered)
	assert.Equal(t, 0, rt.subscriberCount())
	// cache survives for a fast re-open
	assert.Len(t, messages.List("B"), 1)

	_, err := s.Send(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionClosed)
}
