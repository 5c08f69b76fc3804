package transcription

import (
	"context"
	"fmt"
	"sync"
)

// MockTranscriber synthesizes transcripts locally for demo deployments and
// tests. Every few audio frames it emits a partial; Finalize pops the next
// scripted utterance, or reports silence when the script runs dry.
type MockTranscriber struct {
	mu       sync.Mutex
	cb       Callbacks
	script   []string
	frames   int
	closed   bool
	partialN int
}

const mockPartialEvery = 4

func NewMock(script []string, cb Callbacks) *MockTranscriber {
	m := &MockTranscriber{cb: cb, script: script}
	if cb.OnReady != nil {
		cb.OnReady()
	}
	return m
}

func (m *MockTranscriber) SendAudio(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transcriber closed")
	}
	m.frames++
	emit := m.frames%mockPartialEvery == 0
	if emit {
		m.partialN++
	}
	n := m.partialN
	cb := m.cb.OnPartial
	m.mu.Unlock()

	if emit && cb != nil {
		cb(fmt.Sprintf("(listening %d)", n))
	}
	return nil
}

func (m *MockTranscriber) Finalize(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", fmt.Errorf("transcriber closed")
	}

	m.frames = 0
	m.partialN = 0

	if len(m.script) == 0 {
		return "", nil
	}
	text := m.script[0]
	m.script = m.script[1:]
	return text, nil
}

func (m *MockTranscriber) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *MockTranscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
