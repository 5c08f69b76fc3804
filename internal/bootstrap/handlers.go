package bootstrap

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
	"github.com/stillpoint/mentor-backend/internal/gateway"
	"github.com/stillpoint/mentor-backend/internal/health"
	"github.com/stillpoint/mentor-backend/internal/registry"
)

func ProvideRegistryHandler(service *registry.Service, log *slog.Logger) *registry.Handler {
	return registry.NewHandler(service, log)
}

func ProvideGatewayHandler(
	manager *dialogue.Manager,
	sessions *registry.Service,
	newConfig gateway.SessionConfigFactory,
	log *slog.Logger,
) *gateway.Handler {
	return gateway.NewHandler(manager, sessions, newConfig, log)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, manager *dialogue.Manager, cfg *Config) *health.Handler {
	return health.NewHandler(db, redisClient, manager, cfg.Version)
}

type HandlerParams struct {
	fx.In

	RegistryHandler *registry.Handler
	GatewayHandler  *gateway.Handler
	HealthHandler   *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.RegistryHandler.RegisterRoutes(e.Group("/api"))
	params.GatewayHandler.RegisterRoutes(e)
	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideRegistryHandler,
		ProvideGatewayHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
