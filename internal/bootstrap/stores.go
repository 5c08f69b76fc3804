package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/stillpoint/mentor-backend/internal/registry"
)

func ProvideLiveStore(redisClient *redis.Client, log *slog.Logger) registry.LiveStore {
	if redisClient == nil {
		log.Warn("no Redis configured, using in-memory session registry")
		return registry.NewMemoryStore()
	}
	return registry.NewRedisStore(redisClient)
}

func ProvideArchive(db *gorm.DB) *registry.Archive {
	if db == nil {
		return nil
	}
	return registry.NewArchive(db)
}

func ProvideRegistryService(live registry.LiveStore, archive *registry.Archive, log *slog.Logger) *registry.Service {
	return registry.NewService(live, archive, log)
}

func RunMigrations(archive *registry.Archive) error {
	if archive == nil {
		return nil
	}
	return archive.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideLiveStore,
		ProvideArchive,
		ProvideRegistryService,
	),
	fx.Invoke(RunMigrations),
)
