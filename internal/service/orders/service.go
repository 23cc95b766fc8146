// Package orders реализует движок агрегата заказа: поддерживает total равным сумме позиций,
// снимает имя и цену товара в позицию и различает полное (PUT) и частичное (PATCH) обновление.
package orders

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service — движок агрегата заказа. Каждая мутация выполняется в одной транзакции хранилища.
type Service struct {
	store   domain.Store
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics задаёт Prometheus-метрики движка.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService создаёт движок заказов поверх хранилища.
func NewService(store domain.Store, options ...Option) *Service {
	s := &Service{store: store}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-engine")
	}
	return s
}

// CreateOrder создаёт заказ с позициями. Ссылка на несуществующий товар откатывает всю операцию.
func (s *Service) CreateOrder(ctx context.Context, in domain.OrderInput) (result domain.OrderWithItems, err error) {
	defer s.observe("create_order")(&err)

	if err := in.Validate(); err != nil {
		return domain.OrderWithItems{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		order, err := tx.Orders().Insert(ctx, in.BillingAddress, in.ShippingAddress)
		if err != nil {
			return err
		}

		items, err := s.insertLines(ctx, tx, order.ID, in.Items)
		if err != nil {
			return err
		}

		order, err = s.recalculate(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		result = domain.OrderWithItems{Order: order, Items: items}
		return s.enqueue(ctx, tx, domain.EventOrderCreated, order, 0, len(items))
	})
	if err != nil {
		return domain.OrderWithItems{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": result.ID,
		"items":    len(result.Items),
		"total":    result.Total.StringFixed(domain.MoneyScale),
	}).Info("order created")
	return result, nil
}

// GetOrder возвращает заказ без позиций.
func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.Orders().Get(ctx, id)
}

// ListOrders возвращает страницу заказов в порядке возрастания id.
func (s *Service) ListOrders(ctx context.Context, page domain.Page) ([]domain.Order, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return s.store.Orders().List(ctx, page)
}

// UpdateOrder применяет полное или частичное обновление заказа.
func (s *Service) UpdateOrder(ctx context.Context, id int64, update domain.OrderUpdate) (domain.OrderWithItems, error) {
	switch update.Mode {
	case domain.UpdateModeFull:
		return s.replaceOrder(ctx, id, update.Full)
	case domain.UpdateModePartial:
		order, err := s.patchOrder(ctx, id, update.Partial)
		if err != nil {
			return domain.OrderWithItems{}, err
		}
		return domain.OrderWithItems{Order: order}, nil
	default:
		return domain.OrderWithItems{}, domain.Validationf("unsupported update mode %d", update.Mode)
	}
}

// replaceOrder перезаписывает адреса и заменяет весь набор позиций.
func (s *Service) replaceOrder(ctx context.Context, id int64, in domain.OrderInput) (result domain.OrderWithItems, err error) {
	defer s.observe("replace_order")(&err)

	if err := in.Validate(); err != nil {
		return domain.OrderWithItems{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Orders().Get(ctx, id); err != nil {
			return err
		}

		_, err := tx.Orders().UpdateAddresses(ctx, id,
			domain.FullAddressPatch(in.BillingAddress),
			domain.FullAddressPatch(in.ShippingAddress),
		)
		if err != nil {
			return inconsistentIfMissing(err, id)
		}

		if _, err := tx.OrderItems().DeleteByOrder(ctx, id); err != nil {
			return err
		}
		if _, err := s.recalculate(ctx, tx, id); err != nil {
			return err
		}

		items, err := s.insertLines(ctx, tx, id, in.Items)
		if err != nil {
			return err
		}

		order, err := s.recalculate(ctx, tx, id)
		if err != nil {
			return err
		}

		result = domain.OrderWithItems{Order: order, Items: items}
		return s.enqueue(ctx, tx, domain.EventOrderReplaced, order, 0, len(items))
	})
	if err != nil {
		return domain.OrderWithItems{}, err
	}
	return result, nil
}

// patchOrder меняет только переданные поля адресов; позиции и total не затрагиваются.
func (s *Service) patchOrder(ctx context.Context, id int64, patch domain.OrderPatch) (order domain.Order, err error) {
	defer s.observe("patch_order")(&err)

	if err := patch.Validate(); err != nil {
		return domain.Order{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		updated, err := tx.Orders().UpdateAddresses(ctx, id, patch.BillingAddress, patch.ShippingAddress)
		if err != nil {
			return err
		}
		order = updated
		return s.enqueue(ctx, tx, domain.EventOrderPatched, order, 0, 0)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// DeleteOrder удаляет заказ вместе с позициями и возвращает его состояние до удаления.
func (s *Service) DeleteOrder(ctx context.Context, id int64) (order domain.Order, err error) {
	defer s.observe("delete_order")(&err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		existing, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}

		removed, err := tx.OrderItems().DeleteByOrder(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Orders().Delete(ctx, id); err != nil {
			return inconsistentIfMissing(err, id)
		}

		order = existing
		return s.enqueue(ctx, tx, domain.EventOrderDeleted, existing, 0, removed)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithField("order_id", id).Info("order deleted")
	return order, nil
}

// insertLines снимает товар в каждую позицию и вставляет её.
func (s *Service) insertLines(ctx context.Context, tx domain.Repositories, orderID int64, lines []domain.LineInput) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := lookupProduct(ctx, tx, line.ProductID)
		if err != nil {
			return nil, err
		}
		item, err := tx.OrderItems().Insert(ctx, domain.SnapshotItem(orderID, product, line.Qty))
		if err != nil {
			return nil, inconsistentIfMissing(err, orderID)
		}
		items = append(items, item)
	}
	return items, nil
}

// recalculate пересчитывает total из позиций. Исчезновение заказа посреди операции — внутренняя ошибка.
func (s *Service) recalculate(ctx context.Context, tx domain.Repositories, orderID int64) (domain.Order, error) {
	order, err := tx.Orders().RecalculateTotal(ctx, orderID)
	if err != nil {
		return domain.Order{}, inconsistentIfMissing(err, orderID)
	}
	s.metrics.RecordRecalculation()
	return order, nil
}

func (s *Service) enqueue(ctx context.Context, tx domain.Repositories, eventType string, order domain.Order, itemID int64, itemCount int) error {
	msg, err := domain.NewOrderEvent(eventType, order, itemID, itemCount)
	if err != nil {
		return err
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return err
	}
	s.metrics.RecordOutboxEvent(eventType)
	return nil
}

// lookupProduct читает товар для снимка; отсутствие товара превращается в ProductReferenceError.
func lookupProduct(ctx context.Context, tx domain.Repositories, productID int64) (domain.Product, error) {
	product, err := tx.Products().Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, &domain.ProductReferenceError{ProductID: productID}
		}
		return domain.Product{}, err
	}
	return product, nil
}

func inconsistentIfMissing(err error, orderID int64) error {
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Inconsistentf("order %d disappeared during the operation: %v", orderID, err)
	}
	return err
}

// observe открывает измерение операции; результат берётся из именованной ошибки при выходе.
func (s *Service) observe(op string) func(errp *error) {
	done := s.metrics.Start(op)
	return func(errp *error) {
		done(*errp)
	}
}
