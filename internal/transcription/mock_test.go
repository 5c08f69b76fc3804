package transcription

import (
	"context"
	"testing"
)

func TestMockTranscriber_ScriptedFinals(t *testing.T) {
	m := NewMock([]string{"first utterance", "second utterance"}, Callbacks{})
	ctx := context.Background()

	text, err := m.Finalize(ctx)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if text != "first utterance" {
		t.Errorf("unexpected transcript: %q", text)
	}

	text, _ = m.Finalize(ctx)
	if text != "second utterance" {
		t.Errorf("unexpected transcript: %q", text)
	}

	text, _ = m.Finalize(ctx)
	if text != "" {
		t.Errorf("expected empty transcript once script is drained, got %q", text)
	}
}

func TestMockTranscriber_PartialsEveryFewFrames(t *testing.T) {
	var partials []string
	m := NewMock(nil, Callbacks{OnPartial: func(text string) { partials = append(partials, text) }})

	for i := 0; i < mockPartialEvery*2; i++ {
		if err := m.SendAudio([]byte{0x00}); err != nil {
			t.Fatalf("send audio failed: %v", err)
		}
	}

	if len(partials) != 2 {
		t.Fatalf("expected 2 partials, got %d", len(partials))
	}
}

func TestMockTranscriber_ClosedRejectsAudio(t *testing.T) {
	m := NewMock(nil, Callbacks{})
	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if m.IsConnected() {
		t.Error("expected disconnected after close")
	}
	if err := m.SendAudio([]byte{0x00}); err == nil {
		t.Error("expected error sending to closed transcriber")
	}
	if _, err := m.Finalize(context.Background()); err == nil {
		t.Error("expected error finalizing closed transcriber")
	}
}
