// Package cleanup периодически удаляет устаревшие служебные записи:
// просроченные idempotency-ключи и давно отправленные outbox-сообщения.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultBatchSize = 500
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cleanup_runs_total",
		Help: "Total number of cleanup runs grouped by target and result.",
	}, []string{"target", "result"})
	cleanupDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cleanup_deleted_total",
		Help: "Total number of records deleted by cleanup grouped by target.",
	}, []string{"target"})
	cleanupLastDeleted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_cleanup_last_deleted",
		Help: "Number of records deleted during the last cleanup run grouped by target.",
	}, []string{"target"})
)

// DeleteFunc удаляет до limit записей старше before и возвращает их количество.
type DeleteFunc func(ctx context.Context, before time.Time, limit int) (int, error)

// Target — набор записей, который чистит воркер.
type Target struct {
	Name string
	// Retention сдвигает границу удаления в прошлое: удаляются записи старше now - Retention.
	Retention time.Duration
	Delete    DeleteFunc
}

// IdempotencyTarget чистит idempotency-ключи с истёкшим ttl.
func IdempotencyTarget(repo domain.IdempotencyRepository) Target {
	return Target{Name: "idempotency", Delete: repo.DeleteExpired}
}

// OutboxTarget чистит отправленные outbox-сообщения старше retention.
func OutboxTarget(repo domain.OutboxRepository, retention time.Duration) Target {
	return Target{Name: "outbox", Retention: retention, Delete: repo.DeleteSentBefore}
}

// Options задает параметры воркера очистки.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между cleanup-циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер batch для одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// Worker периодически чистит все зарегистрированные цели.
type Worker struct {
	targets   []Target
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewWorker создает воркер очистки. Цели без Delete пропускаются.
func NewWorker(targets []Target, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultInterval,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cleanup-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	active := make([]Target, 0, len(targets))
	for _, target := range targets {
		if target.Delete != nil {
			active = append(active, target)
		}
	}

	return &Worker{
		targets:   active,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		now:       opts.Now,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if len(w.targets) == 0 {
		w.logger.Warn("cleanup worker is disabled: no targets")
		return
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce чистит все цели один раз. Ошибка одной цели не останавливает остальные.
func (w *Worker) RunOnce(ctx context.Context) {
	now := w.now()
	for _, target := range w.targets {
		logger := w.logger.WithField("target", target.Name)

		deleted, err := w.drain(ctx, target, now.Add(-target.Retention))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			cleanupRunsTotal.WithLabelValues(target.Name, "error").Inc()
			logger.WithError(err).Warn("cleanup run failed")
			continue
		}

		cleanupRunsTotal.WithLabelValues(target.Name, "ok").Inc()
		cleanupLastDeleted.WithLabelValues(target.Name).Set(float64(deleted))
		if deleted > 0 {
			logger.WithField("deleted", deleted).Info("cleanup completed")
		}
	}
}

// drain удаляет записи цели порциями batchSize, пока порция не окажется неполной.
func (w *Worker) drain(ctx context.Context, target Target, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := target.Delete(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}

		total += deleted
		if deleted > 0 {
			cleanupDeletedTotal.WithLabelValues(target.Name).Add(float64(deleted))
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}
}
