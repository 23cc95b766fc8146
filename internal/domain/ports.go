package domain

import (
	"context"
	"time"
)

// Repositories — набор репозиториев, доступных в пределах одной единицы работы.
type Repositories interface {
	Products() ProductRepository
	Customers() CustomerRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Outbox() OutboxRepository
}

// Store — хранилище с поддержкой транзакций.
// WithinTx выполняет fn атомарно: ошибка fn откатывает все записи, включая outbox.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}

// ProductRepository описывает хранилище товаров.
type ProductRepository interface {
	Create(ctx context.Context, in ProductInput) (Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, page Page) ([]Product, error)
	Update(ctx context.Context, id int64, patch ProductPatch) (Product, error)
	// Delete удаляет товар и возвращает его последнее состояние.
	Delete(ctx context.Context, id int64) (Product, error)
}

// CustomerRepository описывает хранилище покупателей.
type CustomerRepository interface {
	Create(ctx context.Context, in CustomerInput) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter CustomerFilter, page Page) ([]Customer, error)
	Update(ctx context.Context, id int64, patch CustomerPatch) (Customer, error)
	Delete(ctx context.Context, id int64) (Customer, error)
	// ExistsByEmail проверяет занятость email другим покупателем (excludeID = 0 — без исключений).
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
}

// OrderRepository описывает хранилище заказов. Total пишется только через RecalculateTotal.
type OrderRepository interface {
	// Insert создаёт заказ с total = 0.
	Insert(ctx context.Context, billing, shipping Address) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, page Page) ([]Order, error)
	UpdateAddresses(ctx context.Context, id int64, billing, shipping AddressPatch) (Order, error)
	// RecalculateTotal записывает в заказ сумму total его позиций (0 для пустого набора).
	RecalculateTotal(ctx context.Context, id int64) (Order, error)
	// Delete удаляет заказ вместе с позициями.
	Delete(ctx context.Context, id int64) (Order, error)
}

// OrderItemRepository описывает хранилище позиций заказа.
type OrderItemRepository interface {
	Insert(ctx context.Context, item OrderItem) (OrderItem, error)
	// Get возвращает позицию, только если она принадлежит заказу orderID.
	Get(ctx context.Context, orderID, itemID int64) (OrderItem, error)
	// ListByOrder возвращает позиции в порядке вставки.
	ListByOrder(ctx context.Context, orderID int64, page Page) ([]OrderItem, error)
	Update(ctx context.Context, item OrderItem) (OrderItem, error)
	Delete(ctx context.Context, orderID, itemID int64) (OrderItem, error)
	DeleteByOrder(ctx context.Context, orderID int64) (int, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	// DeleteSentBefore удаляет до limit отправленных сообщений, созданных раньше before.
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
