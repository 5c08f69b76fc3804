package synthesis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func startFakeTTS(t *testing.T, chunks int) (string, func()) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		sawFlush := false
		for !sawFlush {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), "Flush") {
				sawFlush = true
			}
		}

		for i := 0; i < chunks; i++ {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xAA, byte(i)}); err != nil {
				return
			}
		}
		_ = conn.WriteJSON(map[string]string{"type": "Flushed"})
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, srv.Close
}

func TestClient_StreamsAudioUntilFlushed(t *testing.T) {
	wsURL, stop := startFakeTTS(t, 3)
	defer stop()

	client, err := New(Config{URL: wsURL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	var audio [][]byte
	done := false
	err = client.Synthesize(context.Background(), Request{Text: "hello there"}, Callbacks{
		OnAudio: func(data []byte, format string, sampleRate uint32) {
			audio = append(audio, data)
		},
		OnDone: func() { done = true },
	})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	if len(audio) != 3 {
		t.Errorf("expected 3 audio frames, got %d", len(audio))
	}
	if !done {
		t.Error("expected OnDone to fire")
	}
}

func TestClient_CancelStopsStream(t *testing.T) {
	wsURL, stop := startFakeTTS(t, 1000)
	defer stop()

	client, err := New(Config{URL: wsURL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	cancelCh := make(chan struct{})
	close(cancelCh)

	err = client.Synthesize(context.Background(), Request{Text: "long text", Cancel: cancelCh}, Callbacks{
		OnError: func(err error) {
			t.Errorf("unexpected error callback after cancel: %v", err)
		},
	})
	if err != nil {
		t.Fatalf("expected nil error on canceled request, got %v", err)
	}
}

func TestClient_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestClient_ClosedRejectsRequests(t *testing.T) {
	client, err := New(Config{URL: "ws://localhost:9"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := client.Synthesize(context.Background(), Request{Text: "hi"}, Callbacks{}); err == nil {
		t.Error("expected error after close")
	}
}

func TestMockSynthesizer_ChunkCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"one two three", 1},
		{strings.Repeat("word ", 6), 1},
		{strings.Repeat("word ", 7), 2},
		{strings.Repeat("word ", 20), 4},
	}

	for _, tt := range tests {
		if got := ChunkCount(tt.text); got != tt.want {
			t.Errorf("ChunkCount(%d words) = %d, want %d", len(strings.Fields(tt.text)), got, tt.want)
		}
	}
}

func TestMockSynthesizer_EmitsChunksThenDone(t *testing.T) {
	m := &MockSynthesizer{ChunkInterval: time.Millisecond}

	var chunks int
	done := false
	err := m.Synthesize(context.Background(), Request{Text: strings.Repeat("word ", 13)}, Callbacks{
		OnAudio: func(data []byte, format string, sampleRate uint32) { chunks++ },
		OnDone:  func() { done = true },
	})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", chunks)
	}
	if !done {
		t.Error("expected OnDone")
	}
}

func TestMockSynthesizer_CancelBeforeStart(t *testing.T) {
	m := &MockSynthesizer{ChunkInterval: time.Millisecond}

	cancelCh := make(chan struct{})
	close(cancelCh)

	var chunks int
	done := false
	err := m.Synthesize(context.Background(), Request{Text: "hello", Cancel: cancelCh}, Callbacks{
		OnAudio: func(data []byte, format string, sampleRate uint32) { chunks++ },
		OnDone:  func() { done = true },
	})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if chunks != 0 {
		t.Errorf("expected no chunks after cancel, got %d", chunks)
	}
	if done {
		t.Error("OnDone must not fire on canceled stream")
	}
}
