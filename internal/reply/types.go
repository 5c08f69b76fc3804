package reply

import (
	"context"
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type EventType string

const (
	EventToken EventType = "token"
	EventTool  EventType = "tool"
	EventFinal EventType = "final"
	EventError EventType = "error"
)

type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Event is one element of a reply stream: zero or more tokens and tool
// calls, then exactly one final (or error) before the channel closes.
type Event struct {
	Type  EventType
	Token string
	Text  string
	Tool  *ToolCall
	Err   error
}

type Request struct {
	History   []Turn
	Utterance string
}

// Generator produces a lazy, cancellable reply stream. The returned channel
// closes after the final or error event; cancelling ctx stops emission at
// the next token boundary.
type Generator interface {
	Generate(ctx context.Context, req Request) (<-chan Event, error)
}

// emit delivers an event unless the consumer is gone.
func emit(ctx context.Context, ch chan<- Event, evt Event) bool {
	select {
	case ch <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
