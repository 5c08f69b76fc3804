package transcription

import "github.com/stillpoint/mentor-backend/internal/shared"

type Callbacks struct {
	OnReady   func()
	OnPartial func(text string)
	OnError   func(error)
}

type Config struct {
	URL     string
	APIKey  string
	Backoff shared.BackoffConfig
}

type SessionOptions struct {
	Language   string
	Model      string
	SampleRate int
	Partials   bool
}
