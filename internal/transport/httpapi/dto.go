package httpapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// money сериализует сумму строкой с двумя знаками: "600.00".
func money(v decimal.Decimal) string {
	return v.StringFixed(domain.MoneyScale)
}

// nullableString различает отсутствующее поле и явный null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Products.

type productRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description *string          `json:"description"`
	Available   *bool            `json:"available" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
}

func (req productRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Available:   *req.Available,
		Price:       *req.Price,
	}
}

type productPatchRequest struct {
	Name        *string          `json:"name"`
	Description nullableString   `json:"description"`
	Available   *bool            `json:"available"`
	Price       *decimal.Decimal `json:"price"`
}

func (req productPatchRequest) patch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:           req.Name,
		Description:    req.Description.Value,
		SetDescription: req.Description.Set,
		Available:      req.Available,
		Price:          req.Price,
	}
}

type productResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Available   bool      `json:"available"`
	Price       string    `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Available:   p.Available,
		Price:       money(p.Price),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Customers.

type customerRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

func (req customerRequest) input() domain.CustomerInput {
	return domain.CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: req.Country,
	}
}

type customerPatchRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
	Country *string `json:"country"`
}

func (req customerPatchRequest) patch() domain.CustomerPatch {
	return domain.CustomerPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: req.Country,
	}
}

type customerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Street:    c.Street,
		City:      c.City,
		State:     c.State,
		Zip:       c.Zip,
		Country:   c.Country,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Orders.

type addressDTO struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

func (a addressDTO) address() domain.Address {
	return domain.Address{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip, Country: a.Country}
}

func toAddressDTO(a domain.Address) addressDTO {
	return addressDTO{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip, Country: a.Country}
}

type addressPatchDTO struct {
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
	Country *string `json:"country"`
}

func (a *addressPatchDTO) patch() domain.AddressPatch {
	if a == nil {
		return domain.AddressPatch{}
	}
	return domain.AddressPatch{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip, Country: a.Country}
}

type lineRequest struct {
	ProductID *int64 `json:"product_id" validate:"required,gt=0"`
	Qty       *int   `json:"qty" validate:"required,gt=0"`
}

func (req lineRequest) line() domain.LineInput {
	return domain.LineInput{ProductID: *req.ProductID, Qty: *req.Qty}
}

type itemPatchRequest struct {
	ProductID *int64 `json:"product_id" validate:"omitempty,gt=0"`
	Qty       *int   `json:"qty" validate:"omitempty,gt=0"`
}

func (req itemPatchRequest) patch() domain.OrderItemPatch {
	return domain.OrderItemPatch{ProductID: req.ProductID, Qty: req.Qty}
}

// orderRequest не содержит total: сумма заказа только производная.
type orderRequest struct {
	BillingAddress  *addressDTO   `json:"billing_address" validate:"required"`
	ShippingAddress *addressDTO   `json:"shipping_address" validate:"required"`
	Items           []lineRequest `json:"items" validate:"required,min=1,dive"`
}

func (req orderRequest) input() domain.OrderInput {
	return domain.OrderInput{
		BillingAddress:  req.BillingAddress.address(),
		ShippingAddress: req.ShippingAddress.address(),
		Items:           mapSlice(req.Items, lineRequest.line),
	}
}

type orderPatchRequest struct {
	BillingAddress  *addressPatchDTO `json:"billing_address"`
	ShippingAddress *addressPatchDTO `json:"shipping_address"`
}

func (req orderPatchRequest) patch() domain.OrderPatch {
	return domain.OrderPatch{
		BillingAddress:  req.BillingAddress.patch(),
		ShippingAddress: req.ShippingAddress.patch(),
	}
}

type orderResponse struct {
	ID              int64      `json:"id"`
	BillingAddress  addressDTO `json:"billing_address"`
	ShippingAddress addressDTO `json:"shipping_address"`
	Total           string     `json:"total"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		BillingAddress:  toAddressDTO(o.BillingAddress),
		ShippingAddress: toAddressDTO(o.ShippingAddress),
		Total:           money(o.Total),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type orderWithItemsResponse struct {
	orderResponse
	Items []orderItemResponse `json:"items"`
}

func toOrderWithItemsResponse(o domain.OrderWithItems) orderWithItemsResponse {
	return orderWithItemsResponse{
		orderResponse: toOrderResponse(o.Order),
		Items:         mapSlice(o.Items, toOrderItemResponse),
	}
}

type orderItemResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       string    `json:"price"`
	Qty         int       `json:"qty"`
	Total       string    `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOrderItemResponse(it domain.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:          it.ID,
		OrderID:     it.OrderID,
		ProductID:   it.ProductID,
		ProductName: it.ProductName,
		Price:       money(it.Price),
		Qty:         it.Qty,
		Total:       money(it.Total),
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}
