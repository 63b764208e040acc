package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module.
// Tracks lifecycle transitions and the latency of the approval path.
type Metrics struct {
	DoctorsSubmitted prometheus.Counter
	LifecycleTotal   *prometheus.CounterVec
	ReportsSubmitted *prometheus.CounterVec
	ApprovalDuration prometheus.Histogram
	LookupTotal      *prometheus.CounterVec
	LookupCoalesced  prometheus.Counter
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DoctorsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_doctors_submitted_total",
			Help: "Total number of doctor registrations accepted",
		}),
		LifecycleTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_doctor_lifecycle_total",
			Help: "Doctor lifecycle operations by action and outcome",
		}, []string{"action", "outcome"}),
		ReportsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_reports_submitted_total",
			Help: "Reports submitted by derived priority",
		}, []string{"priority"}),
		ApprovalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_approval_duration_seconds",
			Help:    "Duration of ApproveDoctor including ledger anchoring",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		LookupTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_public_lookups_total",
			Help: "Public doctor lookups by result (found, not_found)",
		}, []string{"result"}),
		LookupCoalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "docverify_public_lookups_coalesced_total",
			Help: "Public lookups served by an in-flight lookup for the same license",
		}),
	}
}

func (m *Metrics) IncrementDoctorSubmitted() {
	if m == nil {
		return
	}
	m.DoctorsSubmitted.Inc()
}

// ObserveLifecycle records a lifecycle action outcome ("ok" or an error code).
func (m *Metrics) ObserveLifecycle(action, outcome string) {
	if m == nil {
		return
	}
	m.LifecycleTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementReportSubmitted(priority string) {
	if m == nil {
		return
	}
	m.ReportsSubmitted.WithLabelValues(priority).Inc()
}

// ObserveApproval records the duration of an approval.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApproval(start time.Time) {
	if m == nil {
		return
	}
	m.ApprovalDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLookup(found, shared bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "found"
	}
	m.LookupTotal.WithLabelValues(result).Inc()
	if shared {
		m.LookupCoalesced.Inc()
	}
}
