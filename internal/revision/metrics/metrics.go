package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the revision workflow.
type Metrics struct {
	RevisionsRequested prometheus.Counter

	// Decisions by outcome: approved, rejected
	Decisions *prometheus.CounterVec

	// Gate denials by action
	AuthzDenied *prometheus.CounterVec

	// Conditional updates lost to a concurrent decider
	DecideConflicts prometheus.Counter

	// Sink failures by notification type
	NotificationFailures *prometheus.CounterVec

	StoreLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RevisionsRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_revision_requests_total",
			Help: "Total revisions requested",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxcase_revision_decisions_total",
			Help: "Total revision decisions by outcome",
		}, []string{"outcome"}),
		AuthzDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxcase_revision_authz_denied_total",
			Help: "Authorization denials by action",
		}, []string{"action"}),
		DecideConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_revision_decide_conflicts_total",
			Help: "Decisions rejected because another decision committed first",
		}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taxcase_notification_failures_total",
			Help: "Notification sink failures by notification type",
		}, []string{"event"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxcase_revision_store_duration_seconds",
			Help:    "Latency of revision store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

func (m *Metrics) IncRequested() {
	if m != nil {
		m.RevisionsRequested.Inc()
	}
}

func (m *Metrics) IncDecision(outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncDenied(action string) {
	if m != nil {
		m.AuthzDenied.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncConflict() {
	if m != nil {
		m.DecideConflicts.Inc()
	}
}

func (m *Metrics) IncNotificationFailure(event string) {
	if m != nil {
		m.NotificationFailures.WithLabelValues(event).Inc()
	}
}

// ObserveStore records how long a store operation took.
func (m *Metrics) ObserveStore(op string, d time.Duration) {
	if m != nil {
		m.StoreLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}
