package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/products"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// OrderLifecycleTestSuite проходит жизненный цикл заказа через REST API и outbox.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	router    http.Handler
	publisher *recordingPublisher
	worker    *outbox.Worker
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	s.store = memory.NewStore()
	s.router = httpapi.NewRouter(httpapi.Services{
		Products:  products.NewService(s.store, products.WithLogger(logger)),
		Customers: customers.NewService(s.store, logger),
		Orders:    orders.NewService(s.store, orders.WithLogger(logger)),
	},
		httpapi.WithLogger(logger),
		httpapi.WithIdempotency(memory.NewIdempotencyRepository(), time.Hour),
	)
	s.publisher = &recordingPublisher{}
	s.worker = outbox.NewWorker(s.store.Outbox(), s.publisher, outbox.WithLogger(logger))
}

func (s *OrderLifecycleTestSuite) call(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	var payload bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &payload)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (s *OrderLifecycleTestSuite) createProduct(name, price string) int64 {
	rec, body := s.call(http.MethodPost, "/products/", map[string]any{
		"name":      name,
		"price":     price,
		"available": true,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return int64(body["id"].(float64))
}

func lifecycleAddress() map[string]string {
	return map[string]string{"street": "1 Main St", "city": "Springfield", "state": "IL", "zip": "62701", "country": "US"}
}

func (s *OrderLifecycleTestSuite) TestFullLifecycle() {
	productID := s.createProduct("Desk lamp", "10.00")

	rec, order := s.call(http.MethodPost, "/orders/", map[string]any{
		"billing_address":  lifecycleAddress(),
		"shipping_address": lifecycleAddress(),
		"items":            []map[string]any{{"product_id": productID, "qty": 2}},
	}, "Idempotency-Key", "lifecycle-create")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("20.00", order["total"])
	orderPath := fmt.Sprintf("/orders/%d", int64(order["id"].(float64)))
	firstItemID := int64(order["items"].([]any)[0].(map[string]any)["id"].(float64))

	rec, _ = s.call(http.MethodPost, orderPath+"/items/", map[string]any{"product_id": productID, "qty": 1})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	_, current := s.call(http.MethodGet, orderPath, nil)
	s.Equal("30.00", current["total"])

	rec, _ = s.call(http.MethodPatch, fmt.Sprintf("/products/%d", productID), map[string]any{"price": "15.00"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	_, current = s.call(http.MethodGet, orderPath, nil)
	s.Equal("30.00", current["total"], "item snapshots keep the price at order time")

	rec, item := s.call(http.MethodPatch, fmt.Sprintf("%s/items/%d", orderPath, firstItemID), map[string]any{"qty": 3})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("10.00", item["price"])
	_, current = s.call(http.MethodGet, orderPath, nil)
	s.Equal("40.00", current["total"])

	rec, _ = s.call(http.MethodDelete, orderPath, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.call(http.MethodGet, orderPath, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	s.worker.ProcessOnce(context.Background())
	s.Equal([]string{
		domain.EventProductCreated,
		domain.EventOrderCreated,
		domain.EventOrderItemCreated,
		domain.EventProductUpdated,
		domain.EventOrderItemUpdated,
		domain.EventOrderDeleted,
	}, s.publisher.types())
	s.Empty(s.store.AllPending())
}

func (s *OrderLifecycleTestSuite) TestIdempotentCreateIsReplayed() {
	productID := s.createProduct("Notebook", "3.25")
	body := map[string]any{
		"billing_address":  lifecycleAddress(),
		"shipping_address": lifecycleAddress(),
		"items":            []map[string]any{{"product_id": productID, "qty": 4}},
	}

	first, created := s.call(http.MethodPost, "/orders/", body, "Idempotency-Key", "order-42")
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())
	second, replayed := s.call(http.MethodPost, "/orders/", body, "Idempotency-Key", "order-42")
	s.Require().Equal(http.StatusCreated, second.Code, second.Body.String())

	s.Equal(created["id"], replayed["id"])
	s.Equal("13.00", replayed["total"])
	s.NotEmpty(second.Header().Get("Idempotent-Replayed"))

	s.worker.ProcessOnce(context.Background())
	s.Equal([]string{domain.EventProductCreated, domain.EventOrderCreated}, s.publisher.types())
}

func (s *OrderLifecycleTestSuite) TestMissingProductRollsBackOrder() {
	rec, _ := s.call(http.MethodPost, "/orders/", map[string]any{
		"billing_address":  lifecycleAddress(),
		"shipping_address": lifecycleAddress(),
		"items":            []map[string]any{{"product_id": 404, "qty": 1}},
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	_, list := s.callList("/orders/")
	s.Empty(list)
	s.Empty(s.store.AllPending())
}

func (s *OrderLifecycleTestSuite) callList(path string) (*httptest.ResponseRecorder, []any) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1"+path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var list []any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	return rec, list
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
