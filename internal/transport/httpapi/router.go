// Package httpapi — REST API магазина поверх chi: товары, покупатели, заказы и их позиции.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// ProductService — операции каталога, которые использует API.
type ProductService interface {
	CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, update domain.ProductUpdate) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) (domain.Product, error)
}

// CustomerService — операции над покупателями.
type CustomerService interface {
	CreateCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)
	ListCustomers(ctx context.Context, filter domain.CustomerFilter, page domain.Page) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, update domain.CustomerUpdate) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) (domain.Customer, error)
}

// OrderService — операции агрегата заказа.
type OrderService interface {
	CreateOrder(ctx context.Context, in domain.OrderInput) (domain.OrderWithItems, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context, page domain.Page) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id int64, update domain.OrderUpdate) (domain.OrderWithItems, error)
	DeleteOrder(ctx context.Context, id int64) (domain.Order, error)

	GetOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID int64, page domain.Page) ([]domain.OrderItem, error)
	CreateOrderItem(ctx context.Context, orderID int64, line domain.LineInput) (domain.OrderItem, error)
	UpdateOrderItem(ctx context.Context, orderID, itemID int64, update domain.OrderItemUpdate) (domain.OrderItem, error)
	DeleteOrderItem(ctx context.Context, orderID, itemID int64) (domain.OrderItem, error)
	DeleteAllOrderItems(ctx context.Context, orderID int64) (domain.Order, error)
}

// Services собирает зависимости обработчиков.
type Services struct {
	Products  ProductService
	Customers CustomerService
	Orders    OrderService
}

// Options задает параметры REST API.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.HTTPMetrics
	Idempotency    domain.IdempotencyRepository
	IdempotencyTTL time.Duration
	RequestTimeout time.Duration
}

// Option настраивает роутер.
type Option func(*Options)

// WithLogger задает logger для access-логов и внутренних ошибок.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithIdempotency включает поддержку заголовка Idempotency-Key для POST.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(opts *Options) {
		opts.Idempotency = repo
		opts.IdempotencyTTL = ttl
	}
}

// WithRequestTimeout ограничивает время обработки одного запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.RequestTimeout = timeout
	}
}

type handler struct {
	svc            Services
	logger         *log.Entry
	metrics        *metrics.HTTPMetrics
	validate       *validator.Validate
	idempotency    domain.IdempotencyRepository
	idempotencyTTL time.Duration
}

// NewRouter собирает REST API под префиксом /api/v1.
func NewRouter(svc Services, options ...Option) http.Handler {
	opts := Options{
		RequestTimeout: defaultRequestTimeout,
		IdempotencyTTL: defaultIdempotencyTTL,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "http-api")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}

	h := &handler{
		svc:            svc,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		validate:       newValidator(),
		idempotency:    opts.Idempotency,
		idempotencyTTL: opts.IdempotencyTTL,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.instrument)
	r.Use(h.recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.With(h.idempotent).Post("/", h.createProduct)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getProduct)
				r.Put("/", h.replaceProduct)
				r.Patch("/", h.patchProduct)
				r.Delete("/", h.deleteProduct)
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.With(h.idempotent).Post("/", h.createCustomer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getCustomer)
				r.Put("/", h.replaceCustomer)
				r.Patch("/", h.patchCustomer)
				r.Delete("/", h.deleteCustomer)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.With(h.idempotent).Post("/", h.createOrder)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getOrder)
				r.Put("/", h.replaceOrder)
				r.Patch("/", h.patchOrder)
				r.Delete("/", h.deleteOrder)

				r.Route("/items", func(r chi.Router) {
					r.Get("/", h.listOrderItems)
					r.With(h.idempotent).Post("/", h.createOrderItem)
					r.Delete("/", h.deleteAllOrderItems)
					r.Route("/{item_id}", func(r chi.Router) {
						r.Get("/", h.getOrderItem)
						r.Put("/", h.replaceOrderItem)
						r.Patch("/", h.patchOrderItem)
						r.Delete("/", h.deleteOrderItem)
					})
				})
			})
		})
	})

	return r
}
