package dialogue

import (
	"log/slog"
	"sync"

	"github.com/stillpoint/mentor-backend/internal/transport"
)

// Manager tracks live sessions by id. Sessions remove themselves on
// teardown, so the map never holds a closed session for long.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// CreateSession builds and starts a session over conn. The caller's
// OnClose hook is chained after the manager's own removal.
func (m *Manager) CreateSession(conn transport.Connection, cfg Config) (*Session, error) {
	userOnClose := cfg.OnClose
	cfg.OnClose = func(sessionID string, turns int) {
		m.remove(sessionID)
		if userOnClose != nil {
			userOnClose(sessionID, turns)
		}
	}

	s, err := New(conn, cfg, m.log)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if prev, ok := m.sessions[s.SessionID()]; ok {
		m.mu.Unlock()
		m.log.Warn("replacing existing session", "session_id", s.SessionID())
		_ = prev.Close()
		m.mu.Lock()
	}
	m.sessions[s.SessionID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	s.Start()
	m.log.Info("session created", "session_id", s.SessionID(), "active", count)
	return s, nil
}

func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// RemoveSession closes the session and waits for its loop to exit. The
// map entry is cleared by the session's own teardown hook.
func (m *Manager) RemoveSession(sessionID string) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	_ = s.Close()
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	count := len(m.sessions)
	m.mu.Unlock()
	m.log.Info("session removed", "session_id", sessionID, "active", count)
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every live session. Used on server shutdown.
func (m *Manager) Close() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
