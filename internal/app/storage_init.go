package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies хранилища, выбранные по StorageDriver.
type runtimeDependencies struct {
	store           domain.Store
	idempotencyRepo domain.IdempotencyRepository
	closeFn         func() error
}

// initRuntimeDependencies открывает хранилище и при необходимости применяет миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Info("используем in-memory хранилище")
		return runtimeDependencies{
			store:           memory.NewStore(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			closeFn:         func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithField("schema_version", state.Version).Info("миграции применены")
			}
		}
		logger.Info("используем postgres хранилище")
		return runtimeDependencies{
			store:           store,
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			closeFn:         store.Close,
		}, nil
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
