package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func validAddress() domain.Address {
	return domain.Address{Street: "1 Main", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}
}

func TestErrorClasses(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.IsNotFound(domain.ErrOrderNotFound))
	assert.True(t, domain.IsNotFound(domain.ErrOrderItemNotFound))
	assert.False(t, domain.IsNotFound(domain.ErrEmptyPatch))
	assert.ErrorIs(t, domain.ErrEmptyPatch, domain.ErrValidation)
	assert.ErrorIs(t, domain.ErrCustomerEmailTaken, domain.ErrConflict)

	var refErr error = &domain.ProductReferenceError{ProductID: 42}
	assert.ErrorIs(t, refErr, domain.ErrUnprocessableReference)
	assert.EqualError(t, refErr, "there is no product with id: 42")

	var target *domain.ProductReferenceError
	require.True(t, errors.As(refErr, &target))
	assert.Equal(t, int64(42), target.ProductID)
}

func TestLineTotalRoundsHalfAwayFromZero(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price string
		qty   int
		want  string
	}{
		{price: "300", qty: 2, want: "600.00"},
		{price: "0.335", qty: 1, want: "0.34"},
		{price: "19.99", qty: 3, want: "59.97"},
		{price: "0", qty: 5, want: "0.00"},
	}
	for _, tc := range tests {
		got := domain.LineTotal(decimal.RequireFromString(tc.price), tc.qty)
		assert.Equal(t, tc.want, got.StringFixed(2), "price=%s qty=%d", tc.price, tc.qty)
	}
}

func TestSumTotals(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.SumTotals(nil).IsZero())

	items := []domain.OrderItem{
		{Total: decimal.NewFromInt(5100)},
		{Total: decimal.NewFromInt(10800)},
	}
	assert.Equal(t, "15900.00", domain.SumTotals(items).StringFixed(2))
}

func TestPageBounds(t *testing.T) {
	t.Parallel()

	_, err := domain.NewPage(-1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = domain.NewPage(0, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = domain.NewPage(0, domain.MaxPageLimit+1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	page, err := domain.NewPage(2, domain.MaxPageLimit)
	require.NoError(t, err)
	from, to := page.Window(5)
	assert.Equal(t, 2, from)
	assert.Equal(t, 5, to)

	from, to = domain.Page{Skip: 9, Limit: 3}.Window(5)
	assert.Equal(t, 5, from)
	assert.Equal(t, 5, to)

	assert.Equal(t, domain.Page{Skip: 0, Limit: 100}, domain.DefaultPage())
}

func TestOrderInputValidate(t *testing.T) {
	t.Parallel()

	in := domain.OrderInput{
		BillingAddress:  validAddress(),
		ShippingAddress: validAddress(),
		Items:           []domain.LineInput{{ProductID: 1, Qty: 2}},
	}
	require.NoError(t, in.Validate())

	empty := in
	empty.Items = nil
	assert.ErrorIs(t, empty.Validate(), domain.ErrItemsRequired)

	zeroQty := in
	zeroQty.Items = []domain.LineInput{{ProductID: 1, Qty: 0}}
	assert.ErrorIs(t, zeroQty.Validate(), domain.ErrItemQtyInvalid)

	noCity := in
	noCity.ShippingAddress.City = " "
	err := noCity.Validate()
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "shipping address city")
}

func TestOrderPatchValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, domain.OrderPatch{}.Validate(), domain.ErrEmptyPatch)

	street := "9 Elm"
	patch := domain.OrderPatch{ShippingAddress: domain.AddressPatch{Street: &street}}
	require.NoError(t, patch.Validate())

	applied := patch.ShippingAddress.Apply(validAddress())
	assert.Equal(t, "9 Elm", applied.Street)
	assert.Equal(t, "Springfield", applied.City)

	blank := ""
	assert.ErrorIs(t, domain.OrderPatch{BillingAddress: domain.AddressPatch{Zip: &blank}}.Validate(), domain.ErrValidation)
}

func TestOrderItemPatchValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, domain.OrderItemPatch{}.Validate(), domain.ErrEmptyPatch)
	zero := 0
	assert.ErrorIs(t, domain.OrderItemPatch{Qty: &zero}.Validate(), domain.ErrItemQtyInvalid)
	qty := 4
	assert.NoError(t, domain.OrderItemPatch{Qty: &qty}.Validate())
}

func TestSnapshotAndResnapshot(t *testing.T) {
	t.Parallel()

	widget := domain.Product{ID: 1, Name: "Widget", Price: decimal.NewFromInt(300)}
	item := domain.SnapshotItem(10, widget, 2)
	assert.Equal(t, int64(10), item.OrderID)
	assert.Equal(t, "Widget", item.ProductName)
	assert.Equal(t, "600.00", item.Total.StringFixed(2))

	gadget := domain.Product{ID: 2, Name: "Gadget", Price: decimal.RequireFromString("1.5")}
	item.ID = 7
	resnapped := item.Resnapshot(gadget)
	assert.Equal(t, int64(7), resnapped.ID)
	assert.Equal(t, int64(2), resnapped.ProductID)
	assert.Equal(t, "Gadget", resnapped.ProductName)
	assert.Equal(t, "3.00", resnapped.Total.StringFixed(2))
}

func TestProductUpdateResolve(t *testing.T) {
	t.Parallel()

	_, err := domain.PartialProductUpdate(domain.ProductPatch{}).Resolve()
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)

	_, err = domain.FullProductUpdate(domain.ProductInput{Name: "x", Price: decimal.NewFromInt(-1)}).Resolve()
	assert.ErrorIs(t, err, domain.ErrPriceNegative)

	patch, err := domain.FullProductUpdate(domain.ProductInput{Name: "x", Price: decimal.RequireFromString("2.005")}).Resolve()
	require.NoError(t, err)
	assert.True(t, patch.SetDescription)
	assert.Equal(t, "2.01", patch.Price.StringFixed(2))

	desc := "old"
	cleared := patch.Apply(domain.Product{Description: &desc})
	assert.Nil(t, cleared.Description)

	_, err = domain.ProductUpdate{}.Resolve()
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCustomerFilterMatches(t *testing.T) {
	t.Parallel()

	c := domain.Customer{Name: "Ada Lovelace", Email: "ada@example.com"}
	assert.True(t, domain.CustomerFilter{}.Matches(c))
	assert.True(t, domain.CustomerFilter{Search: "ADA@example.com"}.Matches(c))
	assert.True(t, domain.CustomerFilter{Search: "lovel"}.Matches(c))
	assert.False(t, domain.CustomerFilter{Search: "example"}.Matches(c))
}

func TestCustomerUpdateResolveNormalizesEmail(t *testing.T) {
	t.Parallel()

	email := "  Bob@Example.COM"
	patch, err := domain.PartialCustomerUpdate(domain.CustomerPatch{Email: &email}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", *patch.Email)

	_, err = domain.FullCustomerUpdate(domain.CustomerInput{Name: "Bob"}).Resolve()
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewOrderEvent(t *testing.T) {
	t.Parallel()

	msg, err := domain.NewOrderEvent(domain.EventOrderCreated, domain.Order{ID: 5, Total: decimal.NewFromInt(600)}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.AggregateOrder, msg.AggregateType)
	assert.Equal(t, "5", msg.AggregateID)
	assert.Equal(t, domain.OutboxStatusPending, msg.Status)
	assert.Contains(t, string(msg.Payload), `"total":"600.00"`)
	assert.NotContains(t, string(msg.Payload), "item_id")
}
