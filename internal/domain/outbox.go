package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Типы агрегатов в outbox.
const (
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// Типы событий заказа.
const (
	EventOrderCreated      = "order.created"
	EventOrderReplaced     = "order.replaced"
	EventOrderPatched      = "order.patched"
	EventOrderDeleted      = "order.deleted"
	EventOrderItemCreated  = "order_item.created"
	EventOrderItemUpdated  = "order_item.updated"
	EventOrderItemDeleted  = "order_item.deleted"
	EventOrderItemsCleared = "order_items.cleared"
)

// Типы событий каталога.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// OutboxStatus — статус сообщения в outbox.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        OutboxStatus
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	OrderID   int64     `json:"order_id"`
	ItemID    int64     `json:"item_id,omitempty"`
	Total     string    `json:"total"`
	ItemCount int       `json:"item_count"`
	At        time.Time `json:"at"`
}

// NewOrderEvent формирует outbox-сообщение о мутации заказа.
func NewOrderEvent(eventType string, order Order, itemID int64, itemCount int) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderEvent{
		OrderID:   order.ID,
		ItemID:    itemID,
		Total:     order.Total.StringFixed(MoneyScale),
		ItemCount: itemCount,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     eventType,
		Payload:       payload,
		Status:        OutboxStatusPending,
	}, nil
}

// ProductEvent — полезная нагрузка событий каталога.
type ProductEvent struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Available bool      `json:"available"`
	At        time.Time `json:"at"`
}

// NewProductEvent формирует outbox-сообщение об изменении товара.
func NewProductEvent(eventType string, product Product) (OutboxMessage, error) {
	payload, err := json.Marshal(ProductEvent{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price.StringFixed(MoneyScale),
		Available: product.Available,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateProduct,
		AggregateID:   strconv.FormatInt(product.ID, 10),
		EventType:     eventType,
		Payload:       payload,
		Status:        OutboxStatusPending,
	}, nil
}
