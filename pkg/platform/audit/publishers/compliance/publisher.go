// Package compliance publishes audit events with regulatory weight, such as
// revision decisions. Writes are synchronous: the event is in the store, or
// the caller gets an error.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "taxcase/pkg/platform/audit"
)

var (
	errMissingUser   = errors.New("compliance event requires UserID")
	errMissingAction = errors.New("compliance event requires Action")
)

type Metrics struct {
	Emitted         prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_audit_compliance_emitted_total",
			Help: "Compliance audit events persisted",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_audit_compliance_persist_failures_total",
			Help: "Compliance audit events the store rejected",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxcase_audit_compliance_persist_duration_seconds",
			Help:    "Time spent writing a compliance audit event",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. Pair it with the outbox store so the
// relay ships every persisted event.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit writes the event before returning.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.UserID.IsNil() {
		return errMissingUser
	}
	if event.Action == "" {
		return errMissingAction
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.CategoryCompliance
	}

	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit failed",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		p.metrics.Emitted.Inc()
	}
	return nil
}
