package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	return m.GetCounter().GetValue()
}

func TestOrderMetrics_StartRecordsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.Start("create_order")(nil)
	m.Start("create_order")(errors.New("boom"))
	m.RecordRecalculation()
	m.RecordOutboxEvent("order.created")

	require.Equal(t, 1.0, counterValue(t, m.operations.WithLabelValues("create_order", "ok")))
	require.Equal(t, 1.0, counterValue(t, m.operations.WithLabelValues("create_order", "error")))
	require.Equal(t, 1.0, counterValue(t, m.recalculations))
	require.Equal(t, 1.0, counterValue(t, m.outboxEvents.WithLabelValues("order.created")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["storefront_order_operation_duration_seconds"])
	require.True(t, names["storefront_order_operations_in_flight"])
}

func TestOrderMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordRecalculation()
	second.RecordRecalculation()

	require.Equal(t, 2.0, counterValue(t, first.recalculations))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var orders *OrderMetrics
	orders.Start("noop")(nil)
	orders.RecordRecalculation()
	orders.RecordOutboxEvent("x")

	var httpMetrics *HTTPMetrics
	httpMetrics.Observe("GET", "/", 200, time.Millisecond)

	var cache *CacheMetrics
	cache.Hit()
	cache.Miss()
	cache.Error()
}

func TestHTTPAndCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTPMetricsWithRegisterer(reg)
	c := NewCacheMetricsWithRegisterer(reg)

	h.Observe("GET", "/api/v1/orders/{id}", 404, 5*time.Millisecond)
	c.Hit()
	c.Miss()
	c.Miss()

	require.Equal(t, 1.0, counterValue(t, h.requests.WithLabelValues("GET", "/api/v1/orders/{id}", "404")))
	require.Equal(t, 2.0, counterValue(t, c.lookups.WithLabelValues("miss")))
}
