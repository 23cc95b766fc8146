package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок. Транспортный слой сопоставляет их со статус-кодами через errors.Is.
var (
	// ErrNotFound — сущность с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrValidation — структурно некорректный ввод (пустой список позиций, пустой patch, qty <= 0).
	ErrValidation = errors.New("validation failed")
	// ErrUnprocessableReference — позиция ссылается на несуществующий товар.
	ErrUnprocessableReference = errors.New("unprocessable reference")
	// ErrConflict — нарушение уникальности (например, email покупателя).
	ErrConflict = errors.New("conflict")
	// ErrInconsistentState — хранилище вернулось в недостижимое состояние посреди операции.
	ErrInconsistentState = errors.New("inconsistent storage state")
)

var (
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrCustomerNotFound возвращается, если покупатель не найден.
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOrderItemNotFound возвращается, если позиция не найдена или принадлежит другому заказу.
	ErrOrderItemNotFound = fmt.Errorf("order item %w", ErrNotFound)

	// ErrItemsRequired — заказ без позиций.
	ErrItemsRequired = fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	// ErrItemQtyInvalid — количество товара <= 0.
	ErrItemQtyInvalid = fmt.Errorf("%w: item qty must be greater than zero", ErrValidation)
	// ErrEmptyPatch — partial-обновление без единого поля.
	ErrEmptyPatch = fmt.Errorf("%w: empty payload", ErrValidation)
	// ErrPriceNegative — отрицательная цена товара.
	ErrPriceNegative = fmt.Errorf("%w: price must be non-negative", ErrValidation)

	// ErrCustomerEmailTaken — email уже занят другим покупателем.
	ErrCustomerEmailTaken = fmt.Errorf("%w: customer email is already registered", ErrConflict)

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrPublisherUnavailable — брокер временно недоступен (circuit breaker открыт), сообщение остаётся pending.
	ErrPublisherUnavailable = errors.New("outbox publisher unavailable")

	// Ошибки idempotency-key.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different payload")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ProductReferenceError сообщает, что позиция заказа ссылается на отсутствующий товар.
type ProductReferenceError struct {
	ProductID int64
}

func (e *ProductReferenceError) Error() string {
	return fmt.Sprintf("there is no product with id: %d", e.ProductID)
}

// Unwrap относит ошибку к классу ErrUnprocessableReference.
func (e *ProductReferenceError) Unwrap() error {
	return ErrUnprocessableReference
}

// Validationf формирует ошибку класса ErrValidation с пояснением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Inconsistentf формирует внутреннюю ошибку о нарушенном состоянии хранилища.
func Inconsistentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentState, fmt.Sprintf(format, args...))
}

// IsNotFound проверяет, относится ли ошибка к классу ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
