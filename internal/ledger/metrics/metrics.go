package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ledger anchoring outcomes and latency.
type Metrics struct {
	AnchorTotal    *prometheus.CounterVec
	AnchorDuration *prometheus.HistogramVec
	Retries        *prometheus.CounterVec
	CircuitOpen    prometheus.Gauge
}

// New registers ledger metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnchorTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_ledger_calls_total",
			Help: "Ledger calls by operation and outcome (success, rejected, failed)",
		}, []string{"operation", "outcome"}),
		AnchorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_ledger_call_duration_seconds",
			Help:    "Ledger call latency including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_ledger_retries_total",
			Help: "Ledger call retries by operation",
		}, []string{"operation"}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "docverify_ledger_circuit_open",
			Help: "1 while the ledger circuit breaker is open",
		}),
	}
}

func (m *Metrics) ObserveCall(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.AnchorTotal.WithLabelValues(operation, outcome).Inc()
	m.AnchorDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
