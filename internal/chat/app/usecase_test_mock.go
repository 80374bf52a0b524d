package app

import (
	"context"
	"sync"

	"gourdtalk_client/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageAPI Mock repository.MessageAPI
type MockMessageAPI struct {
	mock.Mock
}

// ListUsers mock list user directory
func (m *MockMessageAPI) ListUsers(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListChats mock list raw chat records
func (m *MockMessageAPI) ListChats(ctx context.Context) ([]domain.RawChatRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.RawChatRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListMessages mock fetch pair history
func (m *MockMessageAPI) ListMessages(ctx context.Context, senderID, receiverID string) ([]domain.Message, error) {
	args := m.Called(ctx, senderID, receiverID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// SendMessage mock REST send
func (m *MockMessageAPI) SendMessage(ctx context.Context, payload domain.SendPayload) (domain.Message, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) != nil {
		return args.Get(0).(domain.Message), args.Error(1)
	}
	return domain.Message{}, args.Error(1)
}

// MarkRead mock batched read receipt
func (m *MockMessageAPI) MarkRead(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// fakeRealtime in-process Realtime double with an injectable emit error.
type fakeRealtime struct {
	mu           sync.Mutex
	nextSub      int
	subs         map[int]func(domain.Message)
	emitted      []domain.Message
	emitErr      error
	unsubscribes int
	state        domain.ConnState
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		subs:  make(map[int]func(domain.Message)),
		state: domain.StateConnected,
	}
}

func (f *fakeRealtime) Emit(msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, msg)
	return nil
}

func (f *fakeRealtime) Subscribe(fn func(domain.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
		f.unsubscribes++
	}
}

func (f *fakeRealtime) State() domain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// push delivers a message to all subscribers, like the manager's
// dispatch does after the store upsert.
func (f *fakeRealtime) push(msg domain.Message) {
	f.mu.Lock()
	fns := make([]func(domain.Message), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (f *fakeRealtime) emittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emitted)
}

func (f *fakeRealtime) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
