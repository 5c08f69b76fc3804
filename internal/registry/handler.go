package registry

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stillpoint/mentor-backend/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions/start", h.StartSession)
	g.POST("/sessions/end", h.EndSession)
	g.GET("/sessions/recent", h.RecentSessions)
}

type startResponse struct {
	SessionID string `json:"sessionId"`
}

type endRequest struct {
	SessionID string `json:"sessionId"`
}

type endResponse struct {
	OK bool `json:"ok"`
}

type recentSession struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	TurnCount int       `json:"turnCount"`
}

type recentResponse struct {
	Sessions []recentSession `json:"sessions"`
}

func (h *Handler) StartSession(c echo.Context) error {
	rec, err := h.service.Start(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to start session", "error", err)
		return shared.InternalError("start_failed", "failed to start session")
	}
	return c.JSON(http.StatusOK, startResponse{SessionID: rec.ID})
}

func (h *Handler) EndSession(c echo.Context) error {
	var req endRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.SessionID == "" {
		return shared.BadRequest("missing_session_id", "sessionId is required")
	}

	if err := h.service.End(c.Request().Context(), req.SessionID, 0); err != nil {
		h.logger.Error("failed to end session", "error", err, "session_id", req.SessionID)
		return shared.InternalError("end_failed", "failed to end session")
	}
	return c.JSON(http.StatusOK, endResponse{OK: true})
}

func (h *Handler) RecentSessions(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := h.service.Recent(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to list recent sessions", "error", err)
		return shared.InternalError("list_failed", "failed to list sessions")
	}

	out := make([]recentSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, recentSession{
			SessionID: row.ID,
			StartedAt: row.StartedAt,
			EndedAt:   row.EndedAt,
			TurnCount: row.TurnCount,
		})
	}
	return c.JSON(http.StatusOK, recentResponse{Sessions: out})
}
