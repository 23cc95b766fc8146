package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	sc scope
}

func (r orderRepository) Insert(_ context.Context, billing, shipping domain.Address) (domain.Order, error) {
	var created domain.Order
	err := r.sc.write(func(st *state) error {
		st.orderSeq++
		ts := now()
		created = domain.Order{
			ID:              st.orderSeq,
			BillingAddress:  billing,
			ShippingAddress: shipping,
			CreatedAt:       ts,
			UpdatedAt:       ts,
		}
		st.orders[created.ID] = created
		return nil
	})
	return created, err
}

func (r orderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := r.sc.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = o
		return nil
	})
	return order, err
}

func (r orderRepository) List(_ context.Context, page domain.Page) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.sc.read(func(st *state) error {
		orders = window(sortedByID(st.orders), page)
		return nil
	})
	return orders, err
}

func (r orderRepository) UpdateAddresses(_ context.Context, id int64, billing, shipping domain.AddressPatch) (domain.Order, error) {
	var updated domain.Order
	err := r.sc.write(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		o.BillingAddress = billing.Apply(o.BillingAddress)
		o.ShippingAddress = shipping.Apply(o.ShippingAddress)
		o.UpdatedAt = now()
		st.orders[id] = o
		updated = o
		return nil
	})
	return updated, err
}

func (r orderRepository) RecalculateTotal(_ context.Context, id int64) (domain.Order, error) {
	var updated domain.Order
	err := r.sc.write(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		o.Total = domain.SumTotals(itemsOf(st, id))
		o.UpdatedAt = now()
		st.orders[id] = o
		updated = o
		return nil
	})
	return updated, err
}

func (r orderRepository) Delete(_ context.Context, id int64) (domain.Order, error) {
	var deleted domain.Order
	err := r.sc.write(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		for _, item := range itemsOf(st, id) {
			delete(st.items, item.ID)
		}
		delete(st.orders, id)
		deleted = o
		return nil
	})
	return deleted, err
}

// itemsOf возвращает позиции заказа в порядке вставки.
func itemsOf(st *state, orderID int64) []domain.OrderItem {
	var items []domain.OrderItem
	for _, item := range st.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.OrderItem) int { return cmp.Compare(a.ID, b.ID) })
	return items
}

type orderItemRepository struct {
	sc scope
}

func (r orderItemRepository) Insert(_ context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	err := r.sc.write(func(st *state) error {
		if _, ok := st.orders[item.OrderID]; !ok {
			return domain.ErrOrderNotFound
		}
		st.itemSeq++
		ts := now()
		item.ID = st.itemSeq
		item.CreatedAt = ts
		item.UpdatedAt = ts
		st.items[item.ID] = item
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

func (r orderItemRepository) Get(_ context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	var item domain.OrderItem
	err := r.sc.read(func(st *state) error {
		it, ok := st.items[itemID]
		if !ok || it.OrderID != orderID {
			return domain.ErrOrderItemNotFound
		}
		item = it
		return nil
	})
	return item, err
}

func (r orderItemRepository) ListByOrder(_ context.Context, orderID int64, page domain.Page) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := r.sc.read(func(st *state) error {
		items = window(itemsOf(st, orderID), page)
		return nil
	})
	return items, err
}

func (r orderItemRepository) Update(_ context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	var updated domain.OrderItem
	err := r.sc.write(func(st *state) error {
		current, ok := st.items[item.ID]
		if !ok || current.OrderID != item.OrderID {
			return domain.ErrOrderItemNotFound
		}
		item.CreatedAt = current.CreatedAt
		item.UpdatedAt = now()
		st.items[item.ID] = item
		updated = item
		return nil
	})
	return updated, err
}

func (r orderItemRepository) Delete(_ context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	var deleted domain.OrderItem
	err := r.sc.write(func(st *state) error {
		it, ok := st.items[itemID]
		if !ok || it.OrderID != orderID {
			return domain.ErrOrderItemNotFound
		}
		deleted = it
		delete(st.items, itemID)
		return nil
	})
	return deleted, err
}

func (r orderItemRepository) DeleteByOrder(_ context.Context, orderID int64) (int, error) {
	var removed int
	err := r.sc.write(func(st *state) error {
		for _, item := range itemsOf(st, orderID) {
			delete(st.items, item.ID)
			removed++
		}
		return nil
	})
	return removed, err
}

var (
	_ domain.OrderRepository     = orderRepository{}
	_ domain.OrderItemRepository = orderItemRepository{}
)
