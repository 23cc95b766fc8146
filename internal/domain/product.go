package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога. Источник снимка name/price для позиций заказа.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Available   bool
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductInput — полный набор полей для создания или PUT-обновления.
type ProductInput struct {
	Name        string
	Description *string
	Available   bool
	Price       decimal.Decimal
}

// Validate проверяет инварианты товара.
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Validationf("product name is required")
	}
	if in.Price.IsNegative() {
		return ErrPriceNegative
	}
	return nil
}

// Patch превращает полный ввод в patch, где заданы все поля.
func (in ProductInput) Patch() ProductPatch {
	price := RoundMoney(in.Price)
	available := in.Available
	name := in.Name
	return ProductPatch{
		Name:           &name,
		Description:    in.Description,
		SetDescription: true,
		Available:      &available,
		Price:          &price,
	}
}

// ProductPatch — частичное обновление товара. nil означает "поле не передано".
type ProductPatch struct {
	Name        *string
	Description *string
	// SetDescription отличает "описание не передано" от "описание сброшено в null".
	SetDescription bool
	Available      *bool
	Price          *decimal.Decimal
}

// Empty сообщает, что patch не содержит ни одного поля.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && !p.SetDescription && p.Available == nil && p.Price == nil
}

// Validate проверяет переданные поля.
func (p ProductPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Validationf("product name must not be empty")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return ErrPriceNegative
	}
	return nil
}

// Apply применяет patch к товару (используется in-memory хранилищем).
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.SetDescription {
		product.Description = p.Description
	}
	if p.Available != nil {
		product.Available = *p.Available
	}
	if p.Price != nil {
		product.Price = RoundMoney(*p.Price)
	}
	return product
}

// ProductUpdate — размеченный вариант обновления: Full (PUT) или Partial (PATCH).
type ProductUpdate struct {
	Mode    UpdateMode
	Full    ProductInput
	Partial ProductPatch
}

// FullProductUpdate строит PUT-обновление.
func FullProductUpdate(in ProductInput) ProductUpdate {
	return ProductUpdate{Mode: UpdateModeFull, Full: in}
}

// PartialProductUpdate строит PATCH-обновление.
func PartialProductUpdate(p ProductPatch) ProductUpdate {
	return ProductUpdate{Mode: UpdateModePartial, Partial: p}
}

// Resolve проверяет вариант и сводит его к patch для хранилища.
func (u ProductUpdate) Resolve() (ProductPatch, error) {
	switch u.Mode {
	case UpdateModeFull:
		if err := u.Full.Validate(); err != nil {
			return ProductPatch{}, err
		}
		return u.Full.Patch(), nil
	case UpdateModePartial:
		if err := u.Partial.Validate(); err != nil {
			return ProductPatch{}, err
		}
		return u.Partial, nil
	default:
		return ProductPatch{}, Validationf("unsupported update mode %d", u.Mode)
	}
}
