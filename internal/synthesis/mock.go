package synthesis

import (
	"context"
	"strings"
	"time"
)

// MockSynthesizer produces chunk markers instead of audio, paced so that
// cancellation mid-stream is observable. One chunk covers roughly six
// words of input; even empty text yields a single chunk.
type MockSynthesizer struct {
	ChunkInterval time.Duration
}

const mockWordsPerChunk = 6

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{ChunkInterval: 40 * time.Millisecond}
}

func ChunkCount(text string) int {
	words := len(strings.Fields(text))
	n := (words + mockWordsPerChunk - 1) / mockWordsPerChunk
	if n < 1 {
		n = 1
	}
	return n
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request, cb Callbacks) error {
	interval := m.ChunkInterval
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < ChunkCount(req.Text); i++ {
		select {
		case <-req.Cancel:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if cb.OnAudio != nil {
			cb.OnAudio([]byte{}, req.Format, 0)
		}
	}

	if cb.OnDone != nil {
		cb.OnDone()
	}
	return nil
}

func (m *MockSynthesizer) Close() error {
	return nil
}
