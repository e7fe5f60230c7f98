package mail

import (
	"context"
	"sync"
)

// MockSender is a test/dev implementation of Sender and UserVerifier.
// Without configured functions it accepts every message and resolves
// every lookup, recording sent messages for assertions.
type MockSender struct {
	SendFunc       func(ctx context.Context, msg *Message) (*Result, error)
	LookupUserFunc func(ctx context.Context, email string) (*Identity, error)

	mu   sync.Mutex
	sent []Message
}

// NewMockSender creates a mock mail sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send delegates to SendFunc or accepts the message.
func (m *MockSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return &Result{Accepted: true}, nil
}

// LookupUser delegates to LookupUserFunc or fabricates an identity.
func (m *MockSender) LookupUser(ctx context.Context, email string) (*Identity, error) {
	if m.LookupUserFunc != nil {
		return m.LookupUserFunc(ctx, email)
	}
	return &Identity{DisplayName: email, Email: email, Department: "不明"}, nil
}

// Sent returns a copy of the messages recorded so far.
func (m *MockSender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
