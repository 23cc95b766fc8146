package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// GetOrderItem возвращает позицию заказа. Позиция чужого заказа считается отсутствующей.
func (s *Service) GetOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	if _, err := s.store.Orders().Get(ctx, orderID); err != nil {
		return domain.OrderItem{}, err
	}
	return s.store.OrderItems().Get(ctx, orderID, itemID)
}

// ListOrderItems возвращает страницу позиций заказа в порядке вставки.
func (s *Service) ListOrderItems(ctx context.Context, orderID int64, page domain.Page) ([]domain.OrderItem, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.Orders().Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.OrderItems().ListByOrder(ctx, orderID, page)
}

// CreateOrderItem добавляет позицию и пересчитывает total заказа.
func (s *Service) CreateOrderItem(ctx context.Context, orderID int64, line domain.LineInput) (item domain.OrderItem, err error) {
	defer s.observe("create_order_item")(&err)

	if err := line.Validate(); err != nil {
		return domain.OrderItem{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}

		inserted, err := s.insertLines(ctx, tx, orderID, []domain.LineInput{line})
		if err != nil {
			return err
		}
		item = inserted[0]

		order, err := s.recalculate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventOrderItemCreated, order, item.ID, 1)
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

// UpdateOrderItem применяет полное или частичное обновление позиции и пересчитывает total заказа.
func (s *Service) UpdateOrderItem(ctx context.Context, orderID, itemID int64, update domain.OrderItemUpdate) (item domain.OrderItem, err error) {
	defer s.observe("update_order_item")(&err)

	switch update.Mode {
	case domain.UpdateModeFull:
		err = update.Full.Validate()
	case domain.UpdateModePartial:
		err = update.Partial.Validate()
	default:
		err = domain.Validationf("unsupported update mode %d", update.Mode)
	}
	if err != nil {
		return domain.OrderItem{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		current, err := tx.OrderItems().Get(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		next, err := applyItemUpdate(ctx, tx, current, update)
		if err != nil {
			return err
		}

		item, err = tx.OrderItems().Update(ctx, next)
		if err != nil {
			return err
		}

		order, err := s.recalculate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventOrderItemUpdated, order, item.ID, 1)
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

// applyItemUpdate строит новое состояние позиции.
// FULL всегда переснимает товар; PARTIAL переснимает его только при переданном product_id,
// а изменение qty сохраняет прежний снимок цены.
func applyItemUpdate(ctx context.Context, tx domain.Repositories, item domain.OrderItem, update domain.OrderItemUpdate) (domain.OrderItem, error) {
	if update.Mode == domain.UpdateModeFull {
		product, err := lookupProduct(ctx, tx, update.Full.ProductID)
		if err != nil {
			return domain.OrderItem{}, err
		}
		item.Qty = update.Full.Qty
		return item.Resnapshot(product), nil
	}

	patch := update.Partial
	if patch.ProductID != nil {
		product, err := lookupProduct(ctx, tx, *patch.ProductID)
		if err != nil {
			return domain.OrderItem{}, err
		}
		item = item.Resnapshot(product)
	}
	if patch.Qty != nil {
		item.Qty = *patch.Qty
	}
	return item.Recalculate(), nil
}

// DeleteOrderItem удаляет позицию и возвращает её состояние до удаления.
func (s *Service) DeleteOrderItem(ctx context.Context, orderID, itemID int64) (item domain.OrderItem, err error) {
	defer s.observe("delete_order_item")(&err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		item, err = tx.OrderItems().Delete(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		order, err := s.recalculate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventOrderItemDeleted, order, item.ID, 1)
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

// DeleteAllOrderItems удаляет все позиции заказа; total становится 0.
func (s *Service) DeleteAllOrderItems(ctx context.Context, orderID int64) (order domain.Order, err error) {
	defer s.observe("delete_all_order_items")(&err)

	var removed int
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		removed, err = tx.OrderItems().DeleteByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		order, err = s.recalculate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventOrderItemsCleared, order, 0, removed)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{"order_id": orderID, "removed": removed}).Debug("order items cleared")
	return order, nil
}
