package synthesis

type Callbacks struct {
	OnAudio func(data []byte, format string, sampleRate uint32)
	OnDone  func()
	OnError func(error)
}

type Config struct {
	URL    string
	APIKey string
	Voice  string
}

// Request is one utterance to synthesize. Cancel preempts the stream; no
// audio callback fires after cancellation is observed.
type Request struct {
	Text   string
	Voice  string
	Speed  float32
	Format string
	Cancel <-chan struct{}
}
