// Package customers реализует операции над покупателями с уникальным email.
package customers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service — операции над покупателями.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис покупателей.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "customer-store")
	}
	return &Service{store: store, logger: logger}
}

// CreateCustomer создаёт покупателя. Занятый email возвращает ErrCustomerEmailTaken.
func (s *Service) CreateCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	if err := in.Validate(); err != nil {
		return domain.Customer{}, err
	}
	in.Email = domain.NormalizeEmail(in.Email)

	var created domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := ensureEmailFree(ctx, tx, in.Email, 0); err != nil {
			return err
		}
		customer, err := tx.Customers().Create(ctx, in)
		if err != nil {
			return err
		}
		created = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", created.ID).Info("customer created")
	return created, nil
}

// GetCustomer возвращает покупателя или ErrCustomerNotFound.
func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return s.store.Customers().Get(ctx, id)
}

// ListCustomers возвращает страницу покупателей, отфильтрованную по email или имени.
func (s *Service) ListCustomers(ctx context.Context, filter domain.CustomerFilter, page domain.Page) ([]domain.Customer, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return s.store.Customers().List(ctx, filter, page)
}

// UpdateCustomer применяет полное или частичное обновление.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, update domain.CustomerUpdate) (domain.Customer, error) {
	patch, err := update.Resolve()
	if err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Customers().Get(ctx, id); err != nil {
			return err
		}
		if patch.Email != nil {
			if err := ensureEmailFree(ctx, tx, *patch.Email, id); err != nil {
				return err
			}
		}
		customer, err := tx.Customers().Update(ctx, id, patch)
		if err != nil {
			return err
		}
		updated = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return updated, nil
}

// DeleteCustomer удаляет покупателя и возвращает его последнее состояние.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.store.Customers().Delete(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", id).Info("customer deleted")
	return customer, nil
}

// ensureEmailFree проверяет уникальность email внутри той же транзакции, что и запись.
func ensureEmailFree(ctx context.Context, tx domain.Repositories, email string, excludeID int64) error {
	taken, err := tx.Customers().ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrCustomerEmailTaken
	}
	return nil
}
