package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
	"github.com/stillpoint/mentor-backend/internal/registry"
)

// SessionConfigFactory builds the dialogue config for one new connection;
// the handler fills in SessionID and the lifecycle hook.
type SessionConfigFactory func() dialogue.Config

type Handler struct {
	manager   *dialogue.Manager
	sessions  *registry.Service
	newConfig SessionConfigFactory
	logger    *slog.Logger
}

func NewHandler(manager *dialogue.Manager, sessions *registry.Service, newConfig SessionConfigFactory, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		sessions:  sessions,
		newConfig: newConfig,
		logger:    logger.With("component", "gateway"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/mentor/ws", h.HandleConnection)
}

// HandleConnection upgrades the socket and runs the read pump until the
// client goes away. The dialogue session lives exactly as long as the
// socket.
func (h *Handler) HandleConnection(c echo.Context) error {
	sessionID := c.QueryParam("session_id")

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := NewWSConn(ws, h.logger)

	cfg := h.newConfig()
	cfg.SessionID = sessionID
	cfg.OnClose = func(id string, turns int) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sessions.End(ctx, id, turns); err != nil {
			h.logger.Error("failed to end session record", "error", err, "session_id", id)
		}
	}

	sess, err := h.manager.CreateSession(conn, cfg)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		_ = conn.Close()
		return nil
	}

	if _, err := h.sessions.Adopt(c.Request().Context(), sess.SessionID()); err != nil {
		h.logger.Error("failed to register session record", "error", err, "session_id", sess.SessionID())
	}

	h.logger.Info("client connected", "session_id", sess.SessionID())

	go conn.writePump()
	conn.readPump()

	_ = sess.Close()
	h.logger.Info("client disconnected", "session_id", sess.SessionID())
	return nil
}
