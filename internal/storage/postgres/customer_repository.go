package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const customerColumns = `id, name, email, phone, street, city, state, zip, country, created_at, updated_at`

type customerRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Street    string    `db:"street"`
	City      string    `db:"city"`
	State     string    `db:"state"`
	Zip       string    `db:"zip"`
	Country   string    `db:"country"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Street:    r.Street,
		City:      r.City,
		State:     r.State,
		Zip:       r.Zip,
		Country:   r.Country,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type customerRepository struct {
	q sqlx.ExtContext
}

func (r customerRepository) Create(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	row := customerRow{
		Name:    in.Name,
		Email:   domain.NormalizeEmail(in.Email),
		Phone:   in.Phone,
		Street:  in.Street,
		City:    in.City,
		State:   in.State,
		Zip:     in.Zip,
		Country: in.Country,
	}

	query, args, err := sqlx.Named(`
		INSERT INTO customers (name, email, phone, street, city, state, zip, country)
		VALUES (:name, :email, :phone, :street, :city, :state, :zip, :country)
		RETURNING `+customerColumns, row)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("bind customer insert: %w", err)
	}

	var created customerRow
	if err := sqlx.GetContext(ctx, r.q, &created, r.q.Rebind(query), args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrCustomerEmailTaken
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return created.toDomain(), nil
}

func (r customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	var row customerRow
	err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("get customer %d: %w", id, notFound(err, domain.ErrCustomerNotFound))
	}
	return row.toDomain(), nil
}

func (r customerRepository) List(ctx context.Context, filter domain.CustomerFilter, page domain.Page) ([]domain.Customer, error) {
	var (
		rows   []customerRow
		err    error
		search = strings.TrimSpace(filter.Search)
	)
	if search == "" {
		err = sqlx.SelectContext(ctx, r.q, &rows, `
			SELECT `+customerColumns+`
			FROM customers
			ORDER BY id
			OFFSET $1 LIMIT $2
		`, page.Skip, page.Limit)
	} else {
		err = sqlx.SelectContext(ctx, r.q, &rows, `
			SELECT `+customerColumns+`
			FROM customers
			WHERE email = $1 OR name ILIKE '%' || $2 || '%'
			ORDER BY id
			OFFSET $3 LIMIT $4
		`, domain.NormalizeEmail(search), escapeLike(search), page.Skip, page.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	customers := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, row.toDomain())
	}
	return customers, nil
}

func (r customerRepository) Update(ctx context.Context, id int64, patch domain.CustomerPatch) (domain.Customer, error) {
	patch = patch.Normalized()

	var row customerRow
	err := sqlx.GetContext(ctx, r.q, &row, `
		UPDATE customers
		SET name       = COALESCE($2::text, name),
		    email      = COALESCE($3::text, email),
		    phone      = COALESCE($4::text, phone),
		    street     = COALESCE($5::text, street),
		    city       = COALESCE($6::text, city),
		    state      = COALESCE($7::text, state),
		    zip        = COALESCE($8::text, zip),
		    country    = COALESCE($9::text, country),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+customerColumns,
		id, patch.Name, patch.Email, patch.Phone, patch.Street, patch.City, patch.State, patch.Zip, patch.Country,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrCustomerEmailTaken
		}
		return domain.Customer{}, fmt.Errorf("update customer %d: %w", id, notFound(err, domain.ErrCustomerNotFound))
	}
	return row.toDomain(), nil
}

func (r customerRepository) Delete(ctx context.Context, id int64) (domain.Customer, error) {
	var row customerRow
	err := sqlx.GetContext(ctx, r.q, &row, `DELETE FROM customers WHERE id = $1 RETURNING `+customerColumns, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("delete customer %d: %w", id, notFound(err, domain.ErrCustomerNotFound))
	}
	return row.toDomain(), nil
}

func (r customerRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1 AND id <> $2)
	`, domain.NormalizeEmail(email), excludeID)
	if err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

// escapeLike экранирует спецсимволы шаблона ILIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ domain.CustomerRepository = customerRepository{}
