package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	uniqueViolationCode = "23505"
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// Store оборачивает подключение к PostgreSQL и реализует domain.Store.
type Store struct {
	repositories
	db *sqlx.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{repositories: repositories{q: db}, db: db}, nil
}

// DB возвращает sqlx-подключение, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// WithinTx выполняет fn в транзакции. Ошибка или panic внутри fn откатывают транзакцию.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) (err error) {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, repositories{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// repositories привязывает репозитории к *sqlx.DB или к *sqlx.Tx.
type repositories struct {
	q sqlx.ExtContext
}

func (r repositories) Products() domain.ProductRepository     { return productRepository{q: r.q} }
func (r repositories) Customers() domain.CustomerRepository   { return customerRepository{q: r.q} }
func (r repositories) Orders() domain.OrderRepository         { return orderRepository{q: r.q} }
func (r repositories) OrderItems() domain.OrderItemRepository { return orderItemRepository{q: r.q} }
func (r repositories) Outbox() domain.OutboxRepository        { return outboxRepository{q: r.q} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.Repositories = repositories{}
)
