package pool

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by every pool registered against the same registry.
type Metrics struct {
	operations   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	ticksCrossed *prometheus.CounterVec
	swapSteps    prometheus.Histogram
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the pool collectors and registers them with reg.
// Collectors already registered by another pool are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		operations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_pool_operations_total",
			Help: "Total number of successful pool operations.",
		}, []string{"pool", "op"})),
		errors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_pool_operation_errors_total",
			Help: "Total number of rejected or failed pool operations.",
		}, []string{"pool", "op"})),
		ticksCrossed: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_pool_ticks_crossed_total",
			Help: "Total number of initialized ticks crossed by committed swaps.",
		}, []string{"pool"})),
		swapSteps: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_pool_swap_steps",
			Help:    "Number of steps taken by each committed swap.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amm_pool_operation_duration_seconds",
			Help:    "Duration of pool operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// observe records the outcome of op on pool.
func (m *Metrics) observe(pool, op string, err error) {
	if err != nil {
		m.errors.WithLabelValues(pool, op).Inc()
		return
	}
	m.operations.WithLabelValues(pool, op).Inc()
}
