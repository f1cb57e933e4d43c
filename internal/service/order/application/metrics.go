// internal/service/order/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 收集履约流水线的 Prometheus 指标。nil 时所有方法都是空操作。
type Metrics struct {
	orders          *prometheus.CounterVec
	discountPercent prometheus.Histogram
	runDuration     prometheus.Histogram
}

// NewMetrics 在给定的 Registerer 上注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_orders_total",
			Help: "Pending orders processed by the fulfillment pipeline, by outcome.",
		}, []string{"outcome"}),
		discountPercent: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulfillment_discount_percent",
			Help:    "Discount percent applied to processed orders.",
			Buckets: []float64{0, 2, 5, 10, 15, 20, 25},
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulfillment_run_duration_seconds",
			Help:    "Duration of one customer fulfillment run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeOutcome(outcome Outcome, discountPercent int) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeFailed {
		m.discountPercent.Observe(float64(discountPercent))
	}
}

func (m *Metrics) observeRun(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}
