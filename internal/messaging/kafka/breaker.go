package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultBreakerTimeout          = 30 * time.Second
	defaultBreakerInterval         = time.Minute
	defaultBreakerHalfOpenRequests = 1
	defaultBreakerFailureThreshold = 5
)

// BreakerSettings задаёт параметры circuit breaker вокруг publisher.
type BreakerSettings struct {
	Name string
	// FailureThreshold — число подряд идущих ошибок, после которого breaker открывается.
	FailureThreshold uint32
	// Timeout — сколько breaker остаётся открытым перед half-open.
	Timeout time.Duration
	// Interval — период сброса счётчиков в закрытом состоянии.
	Interval time.Duration
	// HalfOpenRequests — число пробных запросов в half-open.
	HalfOpenRequests uint32
}

// BreakerPublisher защищает publisher circuit breaker'ом.
// Пока breaker открыт, Publish сразу возвращает domain.ErrPublisherUnavailable.
type BreakerPublisher struct {
	next   domain.OutboxPublisher
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger *log.Entry
}

// NewBreakerPublisher оборачивает publisher.
func NewBreakerPublisher(next domain.OutboxPublisher, settings BreakerSettings) *BreakerPublisher {
	if settings.Name == "" {
		settings.Name = "kafka-outbox"
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = defaultBreakerFailureThreshold
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultBreakerTimeout
	}
	if settings.Interval <= 0 {
		settings.Interval = defaultBreakerInterval
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = defaultBreakerHalfOpenRequests
	}

	logger := log.WithFields(log.Fields{"component": "outbox-breaker", "breaker": settings.Name})
	threshold := settings.FailureThreshold

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.HalfOpenRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})

	return &BreakerPublisher{next: next, cb: cb, logger: logger}
}

// Publish передаёт событие дальше через breaker.
func (p *BreakerPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrPublisherUnavailable, err)
	}
	return err
}

// State возвращает текущее состояние breaker.
func (p *BreakerPublisher) State() string {
	return p.cb.State().String()
}

var _ domain.OutboxPublisher = (*BreakerPublisher)(nil)
