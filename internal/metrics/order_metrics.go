package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики движка заказов.
type OrderMetrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	recalculations prometheus.Counter
	outboxEvents   *prometheus.CounterVec
	inFlight       prometheus.Gauge
}

// NewOrderMetrics создаёт метрики в глобальном registry.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном registry (изолированные тесты).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: register(registerer, "storefront_order_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Total number of order engine operations grouped by operation and result.",
		}, []string{"op", "result"})),
		duration: register(registerer, "storefront_order_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_order_operation_duration_seconds",
			Help:    "Duration of order engine operations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"op"})),
		recalculations: register(registerer, "storefront_order_total_recalculations_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_order_total_recalculations_total",
			Help: "Total number of order total recomputations.",
		})),
		outboxEvents: register(registerer, "storefront_order_outbox_events_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_outbox_events_total",
			Help: "Total number of order events written to the outbox.",
		}, []string{"event_type"})),
		inFlight: register(registerer, "storefront_order_operations_in_flight", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_order_operations_in_flight",
			Help: "Number of order engine operations currently running.",
		})),
	}
}

// Start отмечает начало операции и возвращает функцию её завершения.
func (m *OrderMetrics) Start(op string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	started := time.Now()
	m.inFlight.Inc()
	return func(err error) {
		m.inFlight.Dec()
		m.operations.WithLabelValues(op, Result(err)).Inc()
		m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	}
}

// RecordRecalculation увеличивает счётчик пересчётов total.
func (m *OrderMetrics) RecordRecalculation() {
	if m == nil {
		return
	}
	m.recalculations.Inc()
}

// RecordOutboxEvent учитывает событие, записанное в outbox.
func (m *OrderMetrics) RecordOutboxEvent(eventType string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(eventType).Inc()
}
