package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// MockTurn represents a single response turn from the mock provider.
type MockTurn struct {
	Text  string        // Text to emit (will be chunked for realistic streaming)
	Delay time.Duration // Optional delay before responding
	Error error         // Return this error instead of responding
}

// MockProvider is a configurable provider for tests and the offline "mock"
// backend. It returns scripted responses and records all requests.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	fallback  func(Request) string
	Requests  []Request // Recorded requests for verification
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// NewEchoProvider returns a mock that answers every request by echoing the
// last user turn. It backs the "mock" model for offline use.
func NewEchoProvider() *MockProvider {
	return NewMockProvider("mock").WithFallback(func(req Request) string {
		for i := len(req.Turns) - 1; i >= 0; i-- {
			if req.Turns[i].Role == RoleUser {
				return "Echo: " + req.Turns[i].Content
			}
		}
		return "Echo"
	})
}

func (m *MockProvider) Name() string {
	return m.name
}

// WithFallback sets the responder used once scripted turns run out.
func (m *MockProvider) WithFallback(fn func(Request) string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
	return m
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddError adds a turn that returns an error.
func (m *MockProvider) AddError(err error) *MockProvider {
	return m.AddTurn(MockTurn{Error: err})
}

// Reset clears recorded requests and resets the turn index.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex = 0
	m.Requests = nil
}

// RequestCount returns the number of requests received so far.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request.
func (m *MockProvider) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// Stream implements the Provider interface.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	recorded := req
	recorded.Turns = append([]Turn(nil), req.Turns...)
	m.Requests = append(m.Requests, recorded)

	var turn MockTurn
	switch {
	case m.turnIndex < len(m.turns):
		turn = m.turns[m.turnIndex]
		m.turnIndex++
	case m.fallback != nil:
		turn = MockTurn{Text: m.fallback(req)}
	default:
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}
	m.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(turn.Delay):
			}
		}

		if turn.Error != nil {
			return turn.Error
		}

		// Emit text in chunks (simulates realistic streaming)
		for _, chunk := range chunkText(turn.Text, 10) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- Event{Type: EventTextDelta, Text: chunk}:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- Event{Type: EventDone}:
		}
		return nil
	}), nil
}

// chunkText splits text into chunks of roughly chunkSize bytes, preferring
// to break after a space and never splitting a UTF-8 sequence.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	var chunks []string
	for len(text) > chunkSize {
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i-1] == ' ' {
				breakPoint = i
				break
			}
		}
		for breakPoint < len(text) && !utf8.RuneStart(text[breakPoint]) {
			breakPoint++
		}
		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
