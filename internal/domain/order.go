package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Address — встроенный value object адреса. Живёт и удаляется вместе с заказом.
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// Validate проверяет, что все пять полей адреса заполнены.
func (a Address) Validate(kind string) error {
	fields := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return Validationf("%s address %s is required", kind, f.name)
		}
	}
	return nil
}

// AddressPatch — частичное обновление адреса.
type AddressPatch struct {
	Street  *string
	City    *string
	State   *string
	Zip     *string
	Country *string
}

// Empty сообщает, что ни одно поле адреса не передано.
func (p AddressPatch) Empty() bool {
	return p.Street == nil && p.City == nil && p.State == nil && p.Zip == nil && p.Country == nil
}

// Apply применяет patch к адресу.
func (p AddressPatch) Apply(a Address) Address {
	if p.Street != nil {
		a.Street = *p.Street
	}
	if p.City != nil {
		a.City = *p.City
	}
	if p.State != nil {
		a.State = *p.State
	}
	if p.Zip != nil {
		a.Zip = *p.Zip
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	return a
}

// FullAddressPatch возвращает patch, заменяющий все поля адреса.
func FullAddressPatch(a Address) AddressPatch {
	return AddressPatch{
		Street:  ptr(a.Street),
		City:    ptr(a.City),
		State:   ptr(a.State),
		Zip:     ptr(a.Zip),
		Country: ptr(a.Country),
	}
}

// Order — корень агрегата. Total производное и никогда не задаётся клиентом.
type Order struct {
	ID              int64
	BillingAddress  Address
	ShippingAddress Address
	Total           decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem — позиция заказа со снимком имени и цены товара на момент вставки.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	Qty         int
	Total       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderWithItems — заказ вместе с позициями в порядке вставки.
type OrderWithItems struct {
	Order
	Items []OrderItem
}

// SnapshotItem строит позицию из текущего состояния товара: копирует name/price и считает total.
func SnapshotItem(orderID int64, product Product, qty int) OrderItem {
	price := RoundMoney(product.Price)
	return OrderItem{
		OrderID:     orderID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       price,
		Qty:         qty,
		Total:       LineTotal(price, qty),
	}
}

// Resnapshot перечитывает name/price из товара, сохраняя идентичность позиции.
func (it OrderItem) Resnapshot(product Product) OrderItem {
	it.ProductID = product.ID
	it.ProductName = product.Name
	it.Price = RoundMoney(product.Price)
	return it.Recalculate()
}

// Recalculate пересчитывает total позиции как round(price * qty, 2).
func (it OrderItem) Recalculate() OrderItem {
	it.Total = LineTotal(it.Price, it.Qty)
	return it
}

// LineInput — запрос на позицию: товар и количество.
type LineInput struct {
	ProductID int64
	Qty       int
}

// Validate проверяет позицию.
func (l LineInput) Validate() error {
	if l.ProductID <= 0 {
		return Validationf("product_id must be a positive integer")
	}
	if l.Qty <= 0 {
		return ErrItemQtyInvalid
	}
	return nil
}

// OrderInput — полный ввод заказа для создания или PUT-обновления.
type OrderInput struct {
	BillingAddress  Address
	ShippingAddress Address
	Items           []LineInput
}

// Validate проверяет адреса и набор позиций.
func (in OrderInput) Validate() error {
	if err := in.BillingAddress.Validate("billing"); err != nil {
		return err
	}
	if err := in.ShippingAddress.Validate("shipping"); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return ErrItemsRequired
	}
	for _, line := range in.Items {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OrderPatch — PATCH заказа: только поля адресов, позиции не затрагиваются.
type OrderPatch struct {
	BillingAddress  AddressPatch
	ShippingAddress AddressPatch
}

// Empty сообщает, что patch пуст после отбрасывания незаданных полей.
func (p OrderPatch) Empty() bool {
	return p.BillingAddress.Empty() && p.ShippingAddress.Empty()
}

// Validate проверяет, что patch не пуст и переданные поля не пустые строки.
func (p OrderPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	for _, ap := range []AddressPatch{p.BillingAddress, p.ShippingAddress} {
		for _, f := range []*string{ap.Street, ap.City, ap.State, ap.Zip, ap.Country} {
			if f != nil && strings.TrimSpace(*f) == "" {
				return Validationf("address fields must not be empty")
			}
		}
	}
	return nil
}

// OrderUpdate — размеченный вариант обновления заказа.
type OrderUpdate struct {
	Mode    UpdateMode
	Full    OrderInput
	Partial OrderPatch
}

// FullOrderUpdate строит PUT-обновление: заменяет адреса и весь набор позиций.
func FullOrderUpdate(in OrderInput) OrderUpdate {
	return OrderUpdate{Mode: UpdateModeFull, Full: in}
}

// PartialOrderUpdate строит PATCH-обновление адресов.
func PartialOrderUpdate(p OrderPatch) OrderUpdate {
	return OrderUpdate{Mode: UpdateModePartial, Partial: p}
}

// OrderItemPatch — PATCH позиции.
type OrderItemPatch struct {
	ProductID *int64
	Qty       *int
}

// Empty сообщает, что patch пуст.
func (p OrderItemPatch) Empty() bool {
	return p.ProductID == nil && p.Qty == nil
}

// Validate проверяет переданные поля позиции.
func (p OrderItemPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.ProductID != nil && *p.ProductID <= 0 {
		return Validationf("product_id must be a positive integer")
	}
	if p.Qty != nil && *p.Qty <= 0 {
		return ErrItemQtyInvalid
	}
	return nil
}

// OrderItemUpdate — размеченный вариант обновления позиции.
type OrderItemUpdate struct {
	Mode    UpdateMode
	Full    LineInput
	Partial OrderItemPatch
}

// FullOrderItemUpdate строит PUT-обновление позиции.
func FullOrderItemUpdate(in LineInput) OrderItemUpdate {
	return OrderItemUpdate{Mode: UpdateModeFull, Full: in}
}

// PartialOrderItemUpdate строит PATCH-обновление позиции.
func PartialOrderItemUpdate(p OrderItemPatch) OrderItemUpdate {
	return OrderItemUpdate{Mode: UpdateModePartial, Partial: p}
}
