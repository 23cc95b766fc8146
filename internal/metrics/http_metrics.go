package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики REST API.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetricsWithRegisterer создаёт метрики HTTP-слоя.
func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: register(registerer, "storefront_http_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests grouped by route pattern and status.",
		}, []string{"method", "route", "status"})),
		duration: register(registerer, "storefront_http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})),
	}
}

// Observe записывает результат HTTP-запроса.
func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheMetrics — попадания и промахи кэша товаров.
type CacheMetrics struct {
	lookups *prometheus.CounterVec
}

// NewCacheMetricsWithRegisterer создаёт метрики кэша.
func NewCacheMetricsWithRegisterer(registerer prometheus.Registerer) *CacheMetrics {
	return &CacheMetrics{
		lookups: register(registerer, "storefront_cache_lookups_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_lookups_total",
			Help: "Total number of product cache lookups grouped by result.",
		}, []string{"result"})),
	}
}

// Hit учитывает попадание.
func (m *CacheMetrics) Hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

// Miss учитывает промах.
func (m *CacheMetrics) Miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

// Error учитывает ошибку кэша.
func (m *CacheMetrics) Error() {
	if m != nil {
		m.lookups.WithLabelValues("error").Inc()
	}
}
