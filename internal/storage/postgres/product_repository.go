package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, description, available, price, created_at, updated_at`

type productRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description *string         `db:"description"`
	Available   bool            `db:"available"`
	Price       decimal.Decimal `db:"price"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Available:   r.Available,
		Price:       domain.RoundMoney(r.Price),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type productRepository struct {
	q sqlx.ExtContext
}

func (r productRepository) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		INSERT INTO products (name, description, available, price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		in.Name, in.Description, in.Available, domain.RoundMoney(in.Price),
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return row.toDomain(), nil
}

func (r productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, notFound(err, domain.ErrProductNotFound))
	}
	return row.toDomain(), nil
}

func (r productRepository) List(ctx context.Context, page domain.Page) ([]domain.Product, error) {
	var rows []productRow
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (r productRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	var price *decimal.Decimal
	if patch.Price != nil {
		rounded := domain.RoundMoney(*patch.Price)
		price = &rounded
	}

	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		UPDATE products
		SET name        = COALESCE($2::text, name),
		    description = CASE WHEN $3::boolean THEN $4::text ELSE description END,
		    available   = COALESCE($5::boolean, available),
		    price       = COALESCE($6::numeric, price),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.SetDescription, patch.Description, patch.Available, price,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %d: %w", id, notFound(err, domain.ErrProductNotFound))
	}
	return row.toDomain(), nil
}

func (r productRepository) Delete(ctx context.Context, id int64) (domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("delete product %d: %w", id, notFound(err, domain.ErrProductNotFound))
	}
	return row.toDomain(), nil
}

var _ domain.ProductRepository = productRepository{}
