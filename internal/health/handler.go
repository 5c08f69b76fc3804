package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type Stats struct {
	ActiveSessions int          `json:"active_sessions"`
	Runtime        RuntimeStats `json:"runtime"`
}

type LivenessResponse struct {
	OK             bool      `json:"ok"`
	Timestamp      time.Time `json:"timestamp"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	ActiveSessions int       `json:"active_sessions"`
}

type ReadinessResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Stats      Stats                      `json:"stats"`
	Components map[string]ComponentStatus `json:"components"`
}

// Handler serves liveness and readiness probes. Redis and the database
// are both optional; absent components are simply not reported.
type Handler struct {
	db        *gorm.DB
	redis     *redis.Client
	manager   *dialogue.Manager
	version   string
	startTime time.Time
}

func NewHandler(db *gorm.DB, redisClient *redis.Client, manager *dialogue.Manager, version string) *Handler {
	return &Handler{
		db:        db,
		redis:     redisClient,
		manager:   manager,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", h.Liveness)
	e.GET("/api/health/ready", h.Readiness)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, LivenessResponse{
		OK:             true,
		Timestamp:      time.Now().UTC(),
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		ActiveSessions: h.manager.SessionCount(),
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{}
	if h.db != nil {
		checks = append(checks, struct {
			name  string
			check func(context.Context) ComponentStatus
		}{"database", h.checkDatabase})
	}
	if h.redis != nil {
		checks = append(checks, struct {
			name  string
			check func(context.Context) ComponentStatus
		}{"redis", h.checkRedis})
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overall := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := ReadinessResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Stats: Stats{
			ActiveSessions: h.manager.SessionCount(),
			Runtime: RuntimeStats{
				Goroutines:    runtime.NumGoroutine(),
				MemoryAllocMB: memStats.Alloc / 1024 / 1024,
				NumGC:         memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, resp)
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()

	sqlDB, err := h.db.DB()
	if err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Error: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, LatencyMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}
	return ComponentStatus{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, LatencyMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}
	return ComponentStatus{Status: StatusHealthy, LatencyMs: time.Since(start).Milliseconds()}
}

func computeOverallStatus(components map[string]ComponentStatus) Status {
	unhealthy := 0
	for _, c := range components {
		if c.Status == StatusUnhealthy {
			unhealthy++
		}
	}
	switch {
	case unhealthy == 0:
		return StatusHealthy
	case unhealthy < len(components):
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}
