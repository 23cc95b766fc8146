package outbox_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type recordingPublisher struct {
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.events = append(p.events, event)
	return nil
}

func TestWorker_DrainsOrderEventsFromMemoryStore(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	product, err := store.Products().Create(ctx, domain.ProductInput{Name: "Widget", Price: decimal.NewFromInt(300)})
	require.NoError(t, err)

	address := domain.Address{Street: "1 Main", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}
	engine := orders.NewService(store)
	_, err = engine.CreateOrder(ctx, domain.OrderInput{
		BillingAddress:  address,
		ShippingAddress: address,
		Items:           []domain.LineInput{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	worker := outbox.NewWorker(store.Outbox(), publisher, outbox.WithRetryBaseDelay(0))
	worker.ProcessOnce(ctx)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, domain.EventOrderCreated, publisher.events[0].EventType)
	assert.JSONEq(t, `"600.00"`, jsonField(t, publisher.events[0].Payload, "total"))
	assert.Empty(t, store.AllPending())

	worker.ProcessOnce(ctx)
	assert.Len(t, publisher.events, 1, "sent messages must not be published twice")
}

func jsonField(t *testing.T, payload []byte, field string) string {
	t.Helper()

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &decoded))
	return string(decoded[field])
}
