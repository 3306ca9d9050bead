package llm

import "context"

// Role is the backend-neutral speaker of a turn. Providers translate it into
// their own vocabulary ("model" for Gemini, "assistant" for xAI).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a backend conversation history.
type Turn struct {
	Role    Role
	Content string
}

// Request is a single generation call.
type Request struct {
	System string
	Turns  []Turn
	Params GenerationParams
}

type EventType int

const (
	EventTextDelta EventType = iota
	EventDone
	EventError
)

// Event is one item of a provider stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Provider generates text for a conversation. Implementations must be safe
// for concurrent use; one provider serves every adapter of its backend.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}
