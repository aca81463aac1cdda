// Package security publishes security audit events, such as refused access to
// a revision, through a drop-oldest ring buffer. A burst of denials can only
// evict older denials; it never pushes back on the caller.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "taxcase/pkg/platform/audit"
)

const defaultBatchSize = 64

type Metrics struct {
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_audit_security_dropped_total",
			Help: "Security audit events overwritten in the ring buffer",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_audit_security_persist_failures_total",
			Help: "Security audit events the store rejected",
		}),
	}
}

type Publisher struct {
	store     audit.Store
	buffer    *RingBuffer
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

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

// New starts the background drain. Call Close to flush and stop it.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:     store,
		batchSize: defaultBatchSize,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer == nil {
		p.buffer = NewRingBuffer(defaultCapacity)
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Emit queues the event and returns immediately.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.CategorySecurity
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return audit.ErrPublisherClosed
	}
	if p.buffer.Enqueue(event) {
		if p.metrics != nil {
			p.metrics.Dropped.Inc()
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "security audit buffer full, dropped oldest event",
				"action", event.Action,
			)
		}
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dropped returns how many queued events were overwritten.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}

// Close stops accepting events and flushes what is still buffered.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.done:
			p.flush()
			return
		}
	}
}

func (p *Publisher) flush() {
	ctx := context.Background()
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			if err := p.store.Append(ctx, e); err != nil {
				if p.metrics != nil {
					p.metrics.PersistFailures.Inc()
				}
				if p.logger != nil {
					p.logger.ErrorContext(ctx, "failed to persist security audit event",
						"action", e.Action,
						"request_id", e.RequestID,
						"error", err,
					)
				}
			}
		}
	}
}
