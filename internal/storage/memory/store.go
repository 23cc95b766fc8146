package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// state — полный снимок данных in-memory хранилища.
type state struct {
	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64]domain.OrderItem
	outbox    map[string]outboxRecord

	productSeq  int64
	customerSeq int64
	orderSeq    int64
	itemSeq     int64
	outboxSeq   int64
}

func newState() *state {
	return &state{
		products:  make(map[int64]domain.Product),
		customers: make(map[int64]domain.Customer),
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64]domain.OrderItem),
		outbox:    make(map[string]outboxRecord),
	}
}

// clone копирует карты. Значения — value-типы, поэтому поверхностной копии достаточно.
func (s *state) clone() *state {
	cp := *s
	cp.products = maps.Clone(s.products)
	cp.customers = maps.Clone(s.customers)
	cp.orders = maps.Clone(s.orders)
	cp.items = maps.Clone(s.items)
	cp.outbox = maps.Clone(s.outbox)
	return &cp
}

// scope определяет, как репозиторий получает доступ к состоянию.
type scope interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// Store — in-memory реализация domain.Store.
// Транзакции снапшотные: копия состояния при начале, подмена при успешном завершении.
// Внутри WithinTx нельзя обращаться к репозиториям самого Store, только к tx.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(draft); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// WithinTx выполняет fn над копией состояния и публикует её, только если fn завершилась без ошибки.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(func(draft *state) error {
		return fn(ctx, repositories{sc: txScope{st: draft}})
	})
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Products() domain.ProductRepository     { return repositories{sc: s}.Products() }
func (s *Store) Customers() domain.CustomerRepository   { return repositories{sc: s}.Customers() }
func (s *Store) Orders() domain.OrderRepository         { return repositories{sc: s}.Orders() }
func (s *Store) OrderItems() domain.OrderItemRepository { return repositories{sc: s}.OrderItems() }
func (s *Store) Outbox() domain.OutboxRepository        { return repositories{sc: s}.Outbox() }

// txScope работает напрямую с черновиком транзакции; блокировку держит WithinTx.
type txScope struct {
	st *state
}

func (t txScope) read(fn func(st *state) error) error  { return fn(t.st) }
func (t txScope) write(fn func(st *state) error) error { return fn(t.st) }

type repositories struct {
	sc scope
}

func (r repositories) Products() domain.ProductRepository     { return productRepository{sc: r.sc} }
func (r repositories) Customers() domain.CustomerRepository   { return customerRepository{sc: r.sc} }
func (r repositories) Orders() domain.OrderRepository         { return orderRepository{sc: r.sc} }
func (r repositories) OrderItems() domain.OrderItemRepository { return orderItemRepository{sc: r.sc} }
func (r repositories) Outbox() domain.OutboxRepository        { return outboxRepository{sc: r.sc} }

func now() time.Time {
	return time.Now().UTC()
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.Repositories = repositories{}
)
