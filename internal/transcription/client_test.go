package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stillpoint/mentor-backend/internal/shared"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeSTTServer speaks just enough of the provider protocol for the Client:
// echoes a partial for every binary frame and answers Finalize with one
// final result built from the bytes it saw.
type fakeSTTServer struct {
	mu        sync.Mutex
	frames    int
	finalText string
}

func (f *fakeSTTServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				f.mu.Lock()
				f.frames++
				f.mu.Unlock()
				result := map[string]any{
					"type":     "Results",
					"is_final": false,
					"channel": map[string]any{
						"alternatives": []map[string]any{{"transcript": "partial text"}},
					},
				}
				if err := conn.WriteJSON(result); err != nil {
					return
				}
			case websocket.TextMessage:
				if !strings.Contains(string(data), "Finalize") {
					continue
				}
				f.mu.Lock()
				text := f.finalText
				f.mu.Unlock()
				result := map[string]any{
					"type":          "Results",
					"is_final":      true,
					"from_finalize": true,
					"channel": map[string]any{
						"alternatives": []map[string]any{{"transcript": text}},
					},
				}
				if err := conn.WriteJSON(result); err != nil {
					return
				}
			}
		}
	}
}

func startFakeSTT(t *testing.T, final string) (*fakeSTTServer, string, func()) {
	f := &fakeSTTServer{finalText: final}
	srv := httptest.NewServer(f.handler(t))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return f, wsURL, srv.Close
}

func TestClient_PartialsAndFinalize(t *testing.T) {
	_, wsURL, stop := startFakeSTT(t, "hello mentor")
	defer stop()

	partials := make(chan string, 10)
	client, err := New(
		Config{URL: wsURL, Backoff: shared.BackoffConfig{MaxAttempts: 1}},
		SessionOptions{Partials: true, SampleRate: 16000},
		Callbacks{OnPartial: func(text string) { partials <- text }},
	)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Fatal("expected client to report connected")
	}

	if err := client.SendAudio([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("send audio failed: %v", err)
	}

	select {
	case text := <-partials:
		if text != "partial text" {
			t.Errorf("unexpected partial: %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for partial")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := client.Finalize(ctx)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if final != "hello mentor" {
		t.Errorf("unexpected final transcript: %q", final)
	}
}

func TestClient_FinalizeJoinsSegments(t *testing.T) {
	c := &Client{finalCh: make(chan string, 1)}
	c.appendSegment("first part")
	c.appendSegment("")
	c.appendSegment("second part")

	if got := c.drainSegments(); got != "first part second part" {
		t.Errorf("unexpected joined transcript: %q", got)
	}
	if got := c.drainSegments(); got != "" {
		t.Errorf("expected drained segments to be empty, got %q", got)
	}
}

func TestClient_SendAudioWhenDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.SendAudio([]byte{0x01}); err == nil {
		t.Error("expected error when not connected")
	}
}

func TestClient_DialFailure(t *testing.T) {
	_, err := New(
		Config{URL: "ws://127.0.0.1:1", Backoff: shared.BackoffConfig{MaxAttempts: 1}},
		SessionOptions{},
		Callbacks{},
	)
	if err == nil {
		t.Fatal("expected dial error")
	}
}
