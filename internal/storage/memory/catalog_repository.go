package memory

import (
	"context"
	"maps"
	"slices"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// sortedByID возвращает значения карты в порядке возрастания id.
func sortedByID[V any](m map[int64]V) []V {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func window[V any](all []V, page domain.Page) []V {
	from, to := page.Window(len(all))
	return slices.Clone(all[from:to])
}

type productRepository struct {
	sc scope
}

func (r productRepository) Create(_ context.Context, in domain.ProductInput) (domain.Product, error) {
	var created domain.Product
	err := r.sc.write(func(st *state) error {
		st.productSeq++
		ts := now()
		created = domain.Product{
			ID:          st.productSeq,
			Name:        in.Name,
			Description: in.Description,
			Available:   in.Available,
			Price:       domain.RoundMoney(in.Price),
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		st.products[created.ID] = created
		return nil
	})
	return created, err
}

func (r productRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := r.sc.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		product = p
		return nil
	})
	return product, err
}

func (r productRepository) List(_ context.Context, page domain.Page) ([]domain.Product, error) {
	var products []domain.Product
	err := r.sc.read(func(st *state) error {
		products = window(sortedByID(st.products), page)
		return nil
	})
	return products, err
}

func (r productRepository) Update(_ context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := r.sc.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		updated = patch.Apply(p)
		updated.UpdatedAt = now()
		st.products[id] = updated
		return nil
	})
	return updated, err
}

func (r productRepository) Delete(_ context.Context, id int64) (domain.Product, error) {
	var deleted domain.Product
	err := r.sc.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		deleted = p
		delete(st.products, id)
		return nil
	})
	return deleted, err
}

type customerRepository struct {
	sc scope
}

func emailTaken(st *state, email string, excludeID int64) bool {
	email = domain.NormalizeEmail(email)
	for id, c := range st.customers {
		if id != excludeID && c.Email == email {
			return true
		}
	}
	return false
}

func (r customerRepository) Create(_ context.Context, in domain.CustomerInput) (domain.Customer, error) {
	var created domain.Customer
	err := r.sc.write(func(st *state) error {
		if emailTaken(st, in.Email, 0) {
			return domain.ErrCustomerEmailTaken
		}
		st.customerSeq++
		ts := now()
		created = in.Patch().Apply(domain.Customer{ID: st.customerSeq, CreatedAt: ts, UpdatedAt: ts})
		st.customers[created.ID] = created
		return nil
	})
	return created, err
}

func (r customerRepository) Get(_ context.Context, id int64) (domain.Customer, error) {
	var customer domain.Customer
	err := r.sc.read(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		customer = c
		return nil
	})
	return customer, err
}

func (r customerRepository) List(_ context.Context, filter domain.CustomerFilter, page domain.Page) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := r.sc.read(func(st *state) error {
		all := sortedByID(st.customers)
		matched := all[:0:0]
		for _, c := range all {
			if filter.Matches(c) {
				matched = append(matched, c)
			}
		}
		customers = window(matched, page)
		return nil
	})
	return customers, err
}

func (r customerRepository) Update(_ context.Context, id int64, patch domain.CustomerPatch) (domain.Customer, error) {
	patch = patch.Normalized()

	var updated domain.Customer
	err := r.sc.write(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		if patch.Email != nil && emailTaken(st, *patch.Email, id) {
			return domain.ErrCustomerEmailTaken
		}
		updated = patch.Apply(c)
		updated.UpdatedAt = now()
		st.customers[id] = updated
		return nil
	})
	return updated, err
}

func (r customerRepository) Delete(_ context.Context, id int64) (domain.Customer, error) {
	var deleted domain.Customer
	err := r.sc.write(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		deleted = c
		delete(st.customers, id)
		return nil
	})
	return deleted, err
}

func (r customerRepository) ExistsByEmail(_ context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.sc.read(func(st *state) error {
		taken = emailTaken(st, email, excludeID)
		return nil
	})
	return taken, err
}

var (
	_ domain.ProductRepository  = productRepository{}
	_ domain.CustomerRepository = customerRepository{}
)
