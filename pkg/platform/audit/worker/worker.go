// Package worker relays audit rows from the Postgres outbox to a message broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taxcase/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// Outbox is the slice of the Postgres audit store the relay needs.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers one message synchronously.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Worker polls the outbox and publishes unsent rows. Delivery is at-least-once:
// a crash between produce and mark re-sends the row on the next poll.
type Worker struct {
	outbox       Outbox
	producer     Producer
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(outbox Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:       outbox,
		producer:     producer,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil && w.logger != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were delivered.
// Rows are delivered in order; the first produce failure stops the batch so
// later rows are not published ahead of it.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	sent := make([]uuid.UUID, 0, len(entries))
	var produceErr error
	for _, e := range entries {
		if produceErr = w.producer.Produce(ctx, []byte(e.AggregateID), e.Payload); produceErr != nil {
			break
		}
		sent = append(sent, e.ID)
	}
	if err := w.outbox.MarkPublished(ctx, sent, w.now()); err != nil {
		return 0, err
	}
	if produceErr != nil {
		return len(sent), produceErr
	}
	if w.logger != nil {
		w.logger.DebugContext(ctx, "outbox batch relayed", "count", len(sent))
	}
	return len(sent), nil
}
