package transport

import "encoding/json"

// Server → client event types, in causal order within a turn.
const (
	EventReady      = "ready"
	EventSTTPartial = "stt.partial"
	EventAIToken    = "ai.token"
	EventAITool     = "ai.tool"
	EventAIFinal    = "ai.final"
	EventTTSChunk   = "tts.chunk"
	EventTTSDone    = "tts.done"
	EventTTSStop    = "tts.stop"
	EventError      = "error"
)

// Client → server control message types.
const (
	ControlEndTurn = "audio.endTurn"
	ControlBargeIn = "barge.in"
)

// ServerEvent is one JSON text frame sent to the client. Fields beyond
// Type are populated per event type; the constructors below are the only
// places that build these.
type ServerEvent struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Token   string          `json:"token,omitempty"`
	Seq     *int            `json:"seq,omitempty"`
	Name    string          `json:"name,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Source  string          `json:"source,omitempty"`
	Message string          `json:"message,omitempty"`
}

func ReadyEvent() ServerEvent {
	return ServerEvent{Type: EventReady}
}

func PartialTranscriptEvent(text string) ServerEvent {
	return ServerEvent{Type: EventSTTPartial, Text: text}
}

func TokenEvent(token string) ServerEvent {
	return ServerEvent{Type: EventAIToken, Token: token}
}

func ToolEvent(name string, args json.RawMessage) ServerEvent {
	return ServerEvent{Type: EventAITool, Name: name, Args: args}
}

func FinalEvent(text string) ServerEvent {
	return ServerEvent{Type: EventAIFinal, Text: text}
}

func ChunkEvent(seq int) ServerEvent {
	return ServerEvent{Type: EventTTSChunk, Seq: &seq}
}

func DoneEvent() ServerEvent {
	return ServerEvent{Type: EventTTSDone}
}

func StopEvent() ServerEvent {
	return ServerEvent{Type: EventTTSStop}
}

func ErrorEvent(source, message string) ServerEvent {
	return ServerEvent{Type: EventError, Source: source, Message: message}
}

// ControlMessage is a parsed client JSON text frame. Raw carries the full
// frame for control types that grow payload fields later.
type ControlMessage struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// AudioChunk is a unit of synthesized speech on its way to the client.
type AudioChunk struct {
	Seq        int
	Data       []byte
	Format     string
	SampleRate uint32
}
