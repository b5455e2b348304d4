package llm

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	// If nil, replies are popped from the Replies queue.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Replies are returned in order when ChatFunc is nil.
	// The last reply repeats once the queue is exhausted.
	Replies []Message

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu       sync.Mutex
	requests []*ChatRequest
	next     int
}

// NewMock creates a mock that replies with the given messages in order.
func NewMock(replies ...Message) *Mock {
	if len(replies) == 0 {
		replies = []Message{NewAssistantMessage("mock reply")}
	}
	return &Mock{Replies: replies}
}

// Chat returns the next scripted reply, or delegates to ChatFunc.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}

	m.mu.Lock()
	idx := m.next
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	} else {
		m.next++
	}
	reply := m.Replies[idx]
	m.mu.Unlock()

	return &ChatResponse{
		Message:      reply,
		FinishReason: "stop",
		Model:        "mock",
	}, nil
}

// Health calls HealthFunc or returns nil.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close returns nil.
func (m *Mock) Close() error {
	return nil
}

// Requests returns all chat requests seen so far.
func (m *Mock) Requests() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*ChatRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// CallCount returns the number of Chat invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
