// Package products реализует каталог товаров с read-through кэшем для чтения по id.
package products

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service — операции каталога товаров.
type Service struct {
	store        domain.Store
	cache        cache.ProductCache
	cacheMetrics *metrics.CacheMetrics
	logger       *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithCache подключает кэш товаров.
func WithCache(c cache.ProductCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCacheMetrics задаёт метрики попаданий в кэш.
func WithCacheMetrics(m *metrics.CacheMetrics) Option {
	return func(s *Service) {
		s.cacheMetrics = m
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService создаёт сервис каталога. Без WithCache используется cache.Noop.
func NewService(store domain.Store, options ...Option) *Service {
	s := &Service{store: store, cache: cache.Noop{}}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "product-store")
	}
	return s
}

// CreateProduct создаёт товар.
func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}
	in.Price = domain.RoundMoney(in.Price)

	var created domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		product, err := tx.Products().Create(ctx, in)
		if err != nil {
			return err
		}
		created = product
		return enqueue(ctx, tx, domain.EventProductCreated, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// GetProduct возвращает товар, сначала проверяя кэш. Ошибки кэша не прерывают чтение.
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	cached, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		s.cacheMetrics.Hit()
		return cached, nil
	case errors.Is(err, cache.ErrCacheMiss):
		s.cacheMetrics.Miss()
	default:
		s.cacheMetrics.Error()
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache read failed")
	}

	product, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache write failed")
	}
	return product, nil
}

// ListProducts возвращает страницу товаров по возрастанию id.
func (s *Service) ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return s.store.Products().List(ctx, page)
}

// UpdateProduct применяет полное или частичное обновление. Позиции заказов сохраняют прежний снимок.
func (s *Service) UpdateProduct(ctx context.Context, id int64, update domain.ProductUpdate) (domain.Product, error) {
	patch, err := update.Resolve()
	if err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		product, err := tx.Products().Update(ctx, id, patch)
		if err != nil {
			return err
		}
		updated = product
		return enqueue(ctx, tx, domain.EventProductUpdated, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidate(ctx, id)
	return updated, nil
}

// DeleteProduct удаляет товар и возвращает его последнее состояние.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (domain.Product, error) {
	var deleted domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		product, err := tx.Products().Delete(ctx, id)
		if err != nil {
			return err
		}
		deleted = product
		return enqueue(ctx, tx, domain.EventProductDeleted, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidate(ctx, id)
	s.logger.WithField("product_id", id).Info("product deleted")
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache invalidation failed")
	}
}

func enqueue(ctx context.Context, tx domain.Repositories, eventType string, product domain.Product) error {
	msg, err := domain.NewProductEvent(eventType, product)
	if err != nil {
		return err
	}
	_, err = tx.Outbox().Enqueue(ctx, msg)
	return err
}
