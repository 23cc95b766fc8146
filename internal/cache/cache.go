// Package cache содержит read-through кэш товаров каталога.
package cache

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrCacheMiss возвращается, если ключа нет в кэше.
var ErrCacheMiss = errors.New("cache miss")

// ProductCache — кэш отдельных товаров по id.
type ProductCache interface {
	Get(ctx context.Context, id int64) (domain.Product, error)
	Set(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, id int64) error
}

// Noop — кэш, который ничего не хранит. Используется, когда Redis не настроен.
type Noop struct{}

func (Noop) Get(context.Context, int64) (domain.Product, error) {
	return domain.Product{}, ErrCacheMiss
}

func (Noop) Set(context.Context, domain.Product) error { return nil }

func (Noop) Delete(context.Context, int64) error { return nil }

var _ ProductCache = Noop{}
