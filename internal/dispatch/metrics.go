package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatch engine's Prometheus collectors.
type Metrics struct {
	Requests   *prometheus.CounterVec
	Deliveries *prometheus.CounterVec
	Pruned     prometheus.Counter
	Duration   prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "muster",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Notification requests handled by the dispatch engine, by outcome",
		}, []string{"outcome"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "muster",
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Per-token delivery outcomes reported by the gateway",
		}, []string{"result", "code"}),
		Pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muster",
			Subsystem: "dispatch",
			Name:      "subscriptions_pruned_total",
			Help:      "Subscriptions deleted because their token is permanently invalid",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "muster",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Wall-clock time of one dispatch from claim to terminal write",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}
