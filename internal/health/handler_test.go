package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
)

func testManager() *dialogue.Manager {
	return dialogue.NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil, nil, testManager(), "test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Liveness(c); err != nil {
		t.Fatalf("Liveness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp LivenessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Fatal("expected ok true")
	}
	if resp.ActiveSessions != 0 {
		t.Fatalf("expected 0 active sessions, got %d", resp.ActiveSessions)
	}
}

func TestReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(nil, client, testManager(), "test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Readiness(c); err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	if _, ok := resp.Components["redis"]; !ok {
		t.Fatal("redis component missing")
	}
	if _, ok := resp.Components["database"]; ok {
		t.Fatal("database component reported without a database")
	}
}

func TestReadinessRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := NewHandler(nil, client, testManager(), "test")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Readiness(c); err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{"empty", map[string]ComponentStatus{}, StatusHealthy},
		{"all healthy", map[string]ComponentStatus{
			"redis": {Status: StatusHealthy},
			"db":    {Status: StatusHealthy},
		}, StatusHealthy},
		{"one down", map[string]ComponentStatus{
			"redis": {Status: StatusUnhealthy},
			"db":    {Status: StatusHealthy},
		}, StatusDegraded},
		{"all down", map[string]ComponentStatus{
			"redis": {Status: StatusUnhealthy},
			"db":    {Status: StatusUnhealthy},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}
