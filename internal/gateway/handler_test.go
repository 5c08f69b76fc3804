package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
	"github.com/stillpoint/mentor-backend/internal/registry"
	"github.com/stillpoint/mentor-backend/internal/reply"
	"github.com/stillpoint/mentor-backend/internal/synthesis"
	"github.com/stillpoint/mentor-backend/internal/transcription"
	"github.com/stillpoint/mentor-backend/internal/transport"
)

type gatewayEnv struct {
	srv      *httptest.Server
	sessions *registry.Service
	manager  *dialogue.Manager
}

func startGateway(t *testing.T) *gatewayEnv {
	t.Helper()

	log := testLogger()
	manager := dialogue.NewManager(log)
	sessions := registry.NewService(registry.NewMemoryStore(), nil, log)

	newConfig := func() dialogue.Config {
		gen := reply.NewScripted()
		gen.TokenDelay = 0
		return dialogue.Config{
			NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
				return transcription.NewMock([]string{"i had a rough day"}, cb), nil
			},
			Generator:   gen,
			Synthesizer: &synthesis.MockSynthesizer{ChunkInterval: time.Millisecond},
			IdleTimeout: 10 * time.Second,
		}
	}

	h := NewHandler(manager, sessions, newConfig, log)
	e := echo.New()
	h.RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(manager.Close)

	return &gatewayEnv{srv: srv, sessions: sessions, manager: manager}
}

func (env *gatewayEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/mentor/ws" + query
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func readEventsUntil(t *testing.T, client *websocket.Conn, stop string, timeout time.Duration) []transport.ServerEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var got []transport.ServerEvent
	for {
		_ = client.SetReadDeadline(deadline)
		msgType, data, err := client.ReadMessage()
		if err != nil {
			types := make([]string, len(got))
			for i, evt := range got {
				types[i] = evt.Type
			}
			t.Fatalf("read while waiting for %q: %v (saw %v)", stop, err, types)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var evt transport.ServerEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, evt)
		if evt.Type == stop {
			return got
		}
	}
}

func TestGatewayFullDialogueTurn(t *testing.T) {
	env := startGateway(t)
	client := env.dial(t, "")

	events := readEventsUntil(t, client, transport.EventReady, 2*time.Second)
	if len(events) != 1 {
		t.Fatalf("expected ready first, got %v", events)
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio.endTurn"}`)); err != nil {
		t.Fatalf("write endTurn: %v", err)
	}

	events = readEventsUntil(t, client, transport.EventTTSDone, 5*time.Second)
	var seenFinal, seenToken, seenChunk bool
	for _, evt := range events {
		switch evt.Type {
		case transport.EventAIFinal:
			seenFinal = true
		case transport.EventAIToken:
			seenToken = true
		case transport.EventTTSChunk:
			seenChunk = true
		}
	}
	if !seenToken || !seenFinal || !seenChunk {
		t.Fatalf("incomplete turn: token=%v final=%v chunk=%v", seenToken, seenFinal, seenChunk)
	}
}

func TestGatewayAdoptsSessionID(t *testing.T) {
	env := startGateway(t)

	started, err := env.sessions.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := env.dial(t, "?session_id="+started.ID)
	readEventsUntil(t, client, transport.EventReady, 2*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := env.manager.GetSession(started.ID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s not registered with manager", started.ID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGatewayDisconnectEndsSession(t *testing.T) {
	env := startGateway(t)

	started, err := env.sessions.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := env.dial(t, "?session_id="+started.ID)
	readEventsUntil(t, client, transport.EventReady, 2*time.Second)
	_ = client.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		count, err := env.sessions.ActiveCount(context.Background())
		if err != nil {
			t.Fatalf("ActiveCount: %v", err)
		}
		if count == 0 && env.manager.SessionCount() == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session lingered: registry=%d manager=%d", count, env.manager.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
