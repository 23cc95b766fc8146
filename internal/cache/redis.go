package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultTTL — базовое время жизни записи.
	DefaultTTL = 10 * time.Minute
	// DefaultJitter — верхняя граница случайной добавки к TTL, чтобы записи не истекали одновременно.
	DefaultJitter = 2 * time.Minute

	keyPrefix = "storefront:product:"
)

// cachedProduct — JSON-представление товара в Redis.
type cachedProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Available   bool            `json:"available"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RedisProductCache — cache-aside поверх Redis.
type RedisProductCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
	jitter  time.Duration
}

// RedisOption настраивает RedisProductCache.
type RedisOption func(*RedisProductCache)

// WithTTL задаёт базовый TTL и верхнюю границу jitter.
func WithTTL(base, jitter time.Duration) RedisOption {
	return func(c *RedisProductCache) {
		if base > 0 {
			c.baseTTL = base
		}
		if jitter >= 0 {
			c.jitter = jitter
		}
	}
}

// NewRedisProductCache создаёт кэш товаров поверх клиента go-redis.
func NewRedisProductCache(client redis.Cmdable, options ...RedisOption) *RedisProductCache {
	c := &RedisProductCache{
		client:  client,
		baseTTL: DefaultTTL,
		jitter:  DefaultJitter,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Get читает товар из Redis. Отсутствие ключа возвращает ErrCacheMiss.
func (c *RedisProductCache) Get(ctx context.Context, id int64) (domain.Product, error) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, ErrCacheMiss
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("redis get product %d: %w", id, err)
	}

	var cached cachedProduct
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal cached product %d: %w", id, err)
	}
	return domain.Product{
		ID:          cached.ID,
		Name:        cached.Name,
		Description: cached.Description,
		Available:   cached.Available,
		Price:       cached.Price,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}, nil
}

// Set сохраняет товар с TTL = base + random(0..jitter).
func (c *RedisProductCache) Set(ctx context.Context, product domain.Product) error {
	data, err := json.Marshal(cachedProduct{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Available:   product.Available,
		Price:       product.Price,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal product %d: %w", product.ID, err)
	}

	if err := c.client.Set(ctx, productKey(product.ID), data, c.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set product %d: %w", product.ID, err)
	}
	return nil
}

// Delete инвалидирует запись товара.
func (c *RedisProductCache) Delete(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete product %d: %w", id, err)
	}
	return nil
}

func (c *RedisProductCache) ttl() time.Duration {
	if c.jitter <= 0 {
		return c.baseTTL
	}
	return c.baseTTL + rand.N(c.jitter)
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

var _ ProductCache = (*RedisProductCache)(nil)
