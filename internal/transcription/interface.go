package transcription

import "context"

// Transcriber consumes raw audio and produces transcript events. Partial
// results arrive via Callbacks.OnPartial; Finalize closes out the current
// utterance and returns the best final transcript for it.
type Transcriber interface {
	SendAudio(data []byte) error
	Finalize(ctx context.Context) (string, error)
	IsConnected() bool
	Close() error
}
