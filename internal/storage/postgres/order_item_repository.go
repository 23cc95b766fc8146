package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderItemColumns = `id, order_id, product_id, product_name, price, qty, total, created_at, updated_at`

type orderItemRow struct {
	ID          int64           `db:"id"`
	OrderID     int64           `db:"order_id"`
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	Price       decimal.Decimal `db:"price"`
	Qty         int             `db:"qty"`
	Total       decimal.Decimal `db:"total"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r orderItemRow) toDomain() domain.OrderItem {
	return domain.OrderItem{
		ID:          r.ID,
		OrderID:     r.OrderID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Price:       domain.RoundMoney(r.Price),
		Qty:         r.Qty,
		Total:       domain.RoundMoney(r.Total),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type orderItemRepository struct {
	q sqlx.ExtContext
}

func (r orderItemRepository) Insert(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	var row orderItemRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		INSERT INTO order_items (order_id, product_id, product_name, price, qty, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderItemColumns,
		item.OrderID, item.ProductID, item.ProductName, item.Price, item.Qty, item.Total,
	)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("insert order item: %w", err)
	}
	return row.toDomain(), nil
}

func (r orderItemRepository) Get(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	var row orderItemRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE id = $1 AND order_id = $2
	`, itemID, orderID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("get order item %d: %w", itemID, notFound(err, domain.ErrOrderItemNotFound))
	}
	return row.toDomain(), nil
}

func (r orderItemRepository) ListByOrder(ctx context.Context, orderID int64, page domain.Page) ([]domain.OrderItem, error) {
	var rows []orderItemRow
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`, orderID, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list order %d items: %w", orderID, err)
	}

	items := make([]domain.OrderItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (r orderItemRepository) Update(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	var row orderItemRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		UPDATE order_items
		SET product_id   = $3,
		    product_name = $4,
		    price        = $5,
		    qty          = $6,
		    total        = $7,
		    updated_at   = NOW()
		WHERE id = $1 AND order_id = $2
		RETURNING `+orderItemColumns,
		item.ID, item.OrderID, item.ProductID, item.ProductName, item.Price, item.Qty, item.Total,
	)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("update order item %d: %w", item.ID, notFound(err, domain.ErrOrderItemNotFound))
	}
	return row.toDomain(), nil
}

func (r orderItemRepository) Delete(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error) {
	var row orderItemRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		DELETE FROM order_items
		WHERE id = $1 AND order_id = $2
		RETURNING `+orderItemColumns, itemID, orderID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("delete order item %d: %w", itemID, notFound(err, domain.ErrOrderItemNotFound))
	}
	return row.toDomain(), nil
}

func (r orderItemRepository) DeleteByOrder(ctx context.Context, orderID int64) (int, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, fmt.Errorf("delete order %d items: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("order items rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.OrderItemRepository = orderItemRepository{}
