package dialogue

import (
	"testing"
	"time"

	"github.com/stillpoint/mentor-backend/internal/reply"
	"github.com/stillpoint/mentor-backend/internal/synthesis"
	"github.com/stillpoint/mentor-backend/internal/transcription"
	"github.com/stillpoint/mentor-backend/internal/transport"
)

func managerConfig() Config {
	gen := reply.NewScripted()
	gen.TokenDelay = 0
	return Config{
		NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
			return transcription.NewMock([]string{"hello"}, cb), nil
		},
		Generator:   gen,
		Synthesizer: &synthesis.MockSynthesizer{ChunkInterval: time.Millisecond},
		IdleTimeout: 10 * time.Second,
	}
}

func TestManagerCreateAndRemove(t *testing.T) {
	m := NewManager(testLogger())
	conn := newMockConn()

	s, err := m.CreateSession(conn, managerConfig())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	collectUntil(t, conn, transport.EventReady, 2*time.Second)

	if m.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", m.SessionCount())
	}
	got, ok := m.GetSession(s.SessionID())
	if !ok || got != s {
		t.Fatal("GetSession did not return the live session")
	}

	m.RemoveSession(s.SessionID())
	if m.SessionCount() != 0 {
		t.Fatalf("expected 0 sessions after removal, got %d", m.SessionCount())
	}
	if _, ok := m.GetSession(s.SessionID()); ok {
		t.Fatal("removed session still resolvable")
	}
}

func TestManagerRemoveUnknownIsNoop(t *testing.T) {
	m := NewManager(testLogger())
	m.RemoveSession("sess-missing")
}

func TestManagerSelfRemovalOnIdle(t *testing.T) {
	m := NewManager(testLogger())
	conn := newMockConn()

	cfg := managerConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	closed := make(chan string, 1)
	cfg.OnClose = func(sessionID string, turns int) {
		closed <- sessionID
	}

	s, err := m.CreateSession(conn, cfg)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	select {
	case id := <-closed:
		if id != s.SessionID() {
			t.Fatalf("close hook got %s, want %s", id, s.SessionID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session never timed out")
	}

	deadline := time.Now().Add(time.Second)
	for m.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed from manager, count %d", m.SessionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(testLogger())
	for i := 0; i < 3; i++ {
		if _, err := m.CreateSession(newMockConn(), managerConfig()); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	if m.SessionCount() != 3 {
		t.Fatalf("expected 3 sessions, got %d", m.SessionCount())
	}
	if got := len(m.ListSessions()); got != 3 {
		t.Fatalf("expected 3 listed sessions, got %d", got)
	}

	m.Close()
	if m.SessionCount() != 0 {
		t.Fatalf("expected 0 sessions after Close, got %d", m.SessionCount())
	}
}

func TestManagerReplacesDuplicateID(t *testing.T) {
	m := NewManager(testLogger())

	cfg := managerConfig()
	cfg.SessionID = "sess-dup"
	first, err := m.CreateSession(newMockConn(), cfg)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	cfg2 := managerConfig()
	cfg2.SessionID = "sess-dup"
	second, err := m.CreateSession(newMockConn(), cfg2)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if m.SessionCount() != 1 {
		t.Fatalf("expected 1 session, got %d", m.SessionCount())
	}
	got, ok := m.GetSession("sess-dup")
	if !ok || got != second {
		t.Fatal("expected the replacement session to win")
	}
	if first.State() != StateClosed {
		t.Fatalf("expected first session closed, got %s", first.State())
	}
}
