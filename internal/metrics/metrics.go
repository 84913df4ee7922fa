// Package metrics exposes transaction lifecycle counters through a
// dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the transaction layer.
type Registry struct {
	// Transaction lifecycle
	TransactionsBegun     *prometheus.CounterVec
	TransactionsCompleted *prometheus.CounterVec
	TransactionsActive    prometheus.Gauge
	TransactionDuration   *prometheus.HistogramVec

	// Failure accounting
	HookFailuresTotal    prometheus.Counter
	ConnectionsDiscarded prometheus.Counter

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}
	r.initTransactionMetrics()

	return r
}

func (r *Registry) initTransactionMetrics() {
	r.TransactionsBegun = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "notary_transactions_begun_total",
			Help: "Total number of transactions begun",
		},
		[]string{"kind"},
	)

	r.TransactionsCompleted = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "notary_transactions_completed_total",
			Help: "Total number of transactions that reached a terminal state",
		},
		[]string{"kind", "outcome"},
	)

	r.TransactionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "notary_transactions_active",
			Help: "Number of transactions currently pending",
		},
	)

	r.TransactionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notary_transaction_duration_seconds",
			Help:    "Transaction lifetime from begin to terminal state in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"kind"},
	)

	r.HookFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "notary_commit_hook_failures_total",
			Help: "Total number of after-commit hooks that returned an error",
		},
	)

	r.ConnectionsDiscarded = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "notary_connections_discarded_total",
			Help: "Total number of connections destroyed after a failed control statement",
		},
	)
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler serving this registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
