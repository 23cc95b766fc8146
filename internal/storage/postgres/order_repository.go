package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `id,
	billing_street, billing_city, billing_state, billing_zip, billing_country,
	shipping_street, shipping_city, shipping_state, shipping_zip, shipping_country,
	total, created_at, updated_at`

// orderRow — плоское представление заказа: адреса разложены по колонкам с префиксами billing_/shipping_.
type orderRow struct {
	ID              int64           `db:"id"`
	BillingStreet   string          `db:"billing_street"`
	BillingCity     string          `db:"billing_city"`
	BillingState    string          `db:"billing_state"`
	BillingZip      string          `db:"billing_zip"`
	BillingCountry  string          `db:"billing_country"`
	ShippingStreet  string          `db:"shipping_street"`
	ShippingCity    string          `db:"shipping_city"`
	ShippingState   string          `db:"shipping_state"`
	ShippingZip     string          `db:"shipping_zip"`
	ShippingCountry string          `db:"shipping_country"`
	Total           decimal.Decimal `db:"total"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func orderToRow(billing, shipping domain.Address) orderRow {
	return orderRow{
		BillingStreet:   billing.Street,
		BillingCity:     billing.City,
		BillingState:    billing.State,
		BillingZip:      billing.Zip,
		BillingCountry:  billing.Country,
		ShippingStreet:  shipping.Street,
		ShippingCity:    shipping.City,
		ShippingState:   shipping.State,
		ShippingZip:     shipping.Zip,
		ShippingCountry: shipping.Country,
	}
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID: r.ID,
		BillingAddress: domain.Address{
			Street:  r.BillingStreet,
			City:    r.BillingCity,
			State:   r.BillingState,
			Zip:     r.BillingZip,
			Country: r.BillingCountry,
		},
		ShippingAddress: domain.Address{
			Street:  r.ShippingStreet,
			City:    r.ShippingCity,
			State:   r.ShippingState,
			Zip:     r.ShippingZip,
			Country: r.ShippingCountry,
		},
		Total:     domain.RoundMoney(r.Total),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type orderRepository struct {
	q sqlx.ExtContext
}

func (r orderRepository) Insert(ctx context.Context, billing, shipping domain.Address) (domain.Order, error) {
	query, args, err := sqlx.Named(`
		INSERT INTO orders (
			billing_street, billing_city, billing_state, billing_zip, billing_country,
			shipping_street, shipping_city, shipping_state, shipping_zip, shipping_country,
			total
		) VALUES (
			:billing_street, :billing_city, :billing_state, :billing_zip, :billing_country,
			:shipping_street, :shipping_city, :shipping_state, :shipping_zip, :shipping_country,
			0
		)
		RETURNING `+orderColumns, orderToRow(billing, shipping))
	if err != nil {
		return domain.Order{}, fmt.Errorf("bind order insert: %w", err)
	}

	var row orderRow
	if err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(query), args...); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return row.toDomain(), nil
}

func (r orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %d: %w", id, notFound(err, domain.ErrOrderNotFound))
	}
	return row.toDomain(), nil
}

func (r orderRepository) List(ctx context.Context, page domain.Page) ([]domain.Order, error) {
	var rows []orderRow
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	return orders, nil
}

func (r orderRepository) UpdateAddresses(ctx context.Context, id int64, billing, shipping domain.AddressPatch) (domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		UPDATE orders
		SET billing_street   = COALESCE($2::text, billing_street),
		    billing_city     = COALESCE($3::text, billing_city),
		    billing_state    = COALESCE($4::text, billing_state),
		    billing_zip      = COALESCE($5::text, billing_zip),
		    billing_country  = COALESCE($6::text, billing_country),
		    shipping_street  = COALESCE($7::text, shipping_street),
		    shipping_city    = COALESCE($8::text, shipping_city),
		    shipping_state   = COALESCE($9::text, shipping_state),
		    shipping_zip     = COALESCE($10::text, shipping_zip),
		    shipping_country = COALESCE($11::text, shipping_country),
		    updated_at       = NOW()
		WHERE id = $1
		RETURNING `+orderColumns,
		id,
		billing.Street, billing.City, billing.State, billing.Zip, billing.Country,
		shipping.Street, shipping.City, shipping.State, shipping.Zip, shipping.Country,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %d addresses: %w", id, notFound(err, domain.ErrOrderNotFound))
	}
	return row.toDomain(), nil
}

func (r orderRepository) RecalculateTotal(ctx context.Context, id int64) (domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		UPDATE orders
		SET total = COALESCE((SELECT SUM(total) FROM order_items WHERE order_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("recalculate order %d total: %w", id, notFound(err, domain.ErrOrderNotFound))
	}
	return row.toDomain(), nil
}

func (r orderRepository) Delete(ctx context.Context, id int64) (domain.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, `DELETE FROM orders WHERE id = $1 RETURNING `+orderColumns, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("delete order %d: %w", id, notFound(err, domain.ErrOrderNotFound))
	}
	return row.toDomain(), nil
}

var _ domain.OrderRepository = orderRepository{}
