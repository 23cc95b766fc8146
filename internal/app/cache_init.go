package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
)

const redisPingTimeout = 2 * time.Second

// initProductCache подключает Redis-кеш товаров.
// Без адреса или при недоступном Redis сервис работает с cache.Noop и клиентом nil.
func initProductCache(ctx context.Context, cfg Config, logger *log.Entry) (cache.ProductCache, *redis.Client) {
	if cfg.RedisAddr == "" {
		logger.Info("redis не настроен, кеш товаров отключён")
		return cache.Noop{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis недоступен, продолжаем без кеша")
		_ = client.Close()
		return cache.Noop{}, nil
	}

	logger.WithField("addr", cfg.RedisAddr).Info("кеш товаров подключён к redis")
	return cache.NewRedisProductCache(client, cache.WithTTL(cfg.CacheTTL, cfg.CacheTTL/10)), client
}

// closeRedis закрывает клиент, если он был создан.
func closeRedis(client *redis.Client, logger *log.Entry) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}
